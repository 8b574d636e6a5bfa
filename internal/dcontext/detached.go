package dcontext

import "context"

// DetachedContext returns a context that won't be canceled when the parent
// context is canceled. Values such as the logger are preserved.
//
// A registry write that has started its lookup runs through to the commit on
// a detached context, so a canceled caller never leaves the revision cache
// behind a write the network accepted.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Package cache tracks the last revision this process wrote for each
// registry entry and serializes writers of the same entry.
//
// Every read-modify-write of an entry runs inside WithCachedEntryLock, from
// reading the current revision until the write commits, so two writers can
// never pick the same next revision. Entries for different identities do
// not contend.
//
// Entries are created on first use and never evicted; a cache grows by one
// small struct per distinct (public key, data key) pair it has seen.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/registry"
	"golang.org/x/sync/semaphore"
)

// ErrEntryLocked is returned by TryWithCachedEntryLock when another caller
// holds the entry.
var ErrEntryLocked = errors.New("registry entry is locked by another operation")

// CachedRevisionEntry is the cached state of one entry identity. It must
// only be read or changed while its lock is held.
type CachedRevisionEntry struct {
	// Revision is the last revision known to be stored. It is meaningful
	// only when Known is set.
	Revision uint64

	// Known is false until a lookup or a committed write establishes the
	// revision.
	Known bool

	lock *semaphore.Weighted
}

// Set records a revision that was durably written or read.
func (e *CachedRevisionEntry) Set(revision uint64) {
	e.Revision = revision
	e.Known = true
}

// Reset marks the revision unknown so the next write looks it up again.
func (e *CachedRevisionEntry) Reset() {
	e.Revision = 0
	e.Known = false
}

type identity struct {
	publicKey     string
	hashedDataKey string
}

// RevisionNumberCache maps entry identities to their cached revision and
// lock. The zero value is not usable; use New.
type RevisionNumberCache struct {
	mu      sync.Mutex
	entries map[identity]*CachedRevisionEntry
}

// New returns an empty cache.
func New() *RevisionNumberCache {
	return &RevisionNumberCache{entries: make(map[identity]*CachedRevisionEntry)}
}

// GetRevisionAndMutexForEntry returns the entry for the identity, creating
// it if needed. The data key is resolved the same way registry lookups
// resolve it, so plain and pre-hashed keys share one entry.
func (c *RevisionNumberCache) GetRevisionAndMutexForEntry(publicKey, dataKey string, hashedDataKeyHex bool) (*CachedRevisionEntry, error) {
	hashed, err := registry.DeriveEntryIdentity(publicKey, dataKey, hashedDataKeyHex)
	if err != nil {
		return nil, err
	}
	id := identity{publicKey: strings.ToLower(publicKey), hashedDataKey: hashed}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		e = &CachedRevisionEntry{lock: semaphore.NewWeighted(1)}
		c.entries[id] = e
		metrics.CacheEntries.Inc(1)
	}
	return e, nil
}

// WithCachedEntryLock runs fn while holding the identity's lock, waiting
// for other holders to finish. fn must call Set on the entry only with a
// revision that is actually stored. The lock is released however fn
// returns. A canceled ctx aborts the wait but never a running fn.
//
// The lock is not reentrant: calling WithCachedEntryLock for the same
// identity from inside fn deadlocks until ctx is done.
func (c *RevisionNumberCache) WithCachedEntryLock(ctx context.Context, publicKey, dataKey string, hashedDataKeyHex bool, fn func(*CachedRevisionEntry) error) error {
	e, err := c.GetRevisionAndMutexForEntry(publicKey, dataKey, hashedDataKeyHex)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := e.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.CacheLockWait.UpdateSince(start)
	return run(e, fn)
}

// TryWithCachedEntryLock is WithCachedEntryLock without waiting: if the
// identity is locked it returns ErrEntryLocked and fn is not called.
func (c *RevisionNumberCache) TryWithCachedEntryLock(publicKey, dataKey string, hashedDataKeyHex bool, fn func(*CachedRevisionEntry) error) error {
	e, err := c.GetRevisionAndMutexForEntry(publicKey, dataKey, hashedDataKeyHex)
	if err != nil {
		return err
	}
	if !e.lock.TryAcquire(1) {
		return ErrEntryLocked
	}
	return run(e, fn)
}

func run(e *CachedRevisionEntry, fn func(*CachedRevisionEntry) error) error {
	held := time.Now()
	defer func() {
		metrics.CacheLockHold.UpdateSince(held)
		e.lock.Release(1)
	}()
	return fn(e)
}

// Reset forgets the cached revision of one identity, waiting for any
// running holder first. Use it after another writer has advanced the entry
// past what this cache knows.
func (c *RevisionNumberCache) Reset(ctx context.Context, publicKey, dataKey string, hashedDataKeyHex bool) error {
	return c.WithCachedEntryLock(ctx, publicKey, dataKey, hashedDataKeyHex, func(e *CachedRevisionEntry) error {
		e.Reset()
		return nil
	})
}

// Len returns the number of identities in the cache.
func (c *RevisionNumberCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

package notifications

import (
	"context"
	"fmt"
	"time"

	events "github.com/docker/go-events"
	"github.com/skynetlabs/skynet/internal/uuid"
	"github.com/skynetlabs/skynet/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ComponentName prefixes the spans of this package.
const ComponentName = "notifications"

// Listener is told about registry writes after they commit.
type Listener interface {
	EntrySet(ctx context.Context, target Target) error
	EntryDeleted(ctx context.Context, target Target) error
}

type bridge struct {
	source SourceRecord
	sink   events.Sink
}

var _ Listener = &bridge{}

// NewBridge returns a Listener that turns writes into events on sink.
func NewBridge(source SourceRecord, sink events.Sink) Listener {
	return &bridge{source: source, sink: sink}
}

func (b *bridge) EntrySet(ctx context.Context, target Target) error {
	return b.write(ctx, EventActionSet, target)
}

func (b *bridge) EntryDeleted(ctx context.Context, target Target) error {
	return b.write(ctx, EventActionDelete, target)
}

func (b *bridge) write(ctx context.Context, action string, target Target) error {
	span, _ := tracing.StartSpan(ctx, fmt.Sprintf("%s:%s", ComponentName, action),
		trace.WithAttributes(
			attribute.String("publicKey", target.PublicKey),
			attribute.String("hashedDataKey", target.HashedDataKey)))
	defer tracing.StopSpan(span)

	event := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Source:    b.source,
	}
	addSpanEvent(span, event)

	return b.sink.Write(event)
}

func addSpanEvent(span trace.Span, event Event) {
	if !span.IsRecording() {
		return
	}
	span.AddEvent(fmt.Sprintf("%s %s", ComponentName, event.Action), trace.WithAttributes(
		attribute.String("id", event.ID),
		attribute.Int64("revision", int64(event.Target.Revision)),
		attribute.String("dataLink", event.Target.DataLink),
	))
}

type nopListener struct{}

// NopListener discards all writes.
var NopListener Listener = nopListener{}

func (nopListener) EntrySet(context.Context, Target) error     { return nil }
func (nopListener) EntryDeleted(context.Context, Target) error { return nil }

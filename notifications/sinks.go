package notifications

import (
	events "github.com/docker/go-events"
	"github.com/skynetlabs/skynet/metrics"
)

// pendingQueue is an unbounded queue in front of an endpoint's delivery
// pipeline. An event counts as pending from the moment it is queued until
// delivery has been attempted.
type pendingQueue struct {
	*events.Queue
	name string
}

func newPendingQueue(name string, sink events.Sink) *pendingQueue {
	return &pendingQueue{
		Queue: events.NewQueue(&deliveredSink{Sink: sink, name: name}),
		name:  name,
	}
}

func (q *pendingQueue) Write(event events.Event) error {
	metrics.NotificationsPending.WithValues(q.name).Inc(1)
	if err := q.Queue.Write(event); err != nil {
		metrics.NotificationsPending.WithValues(q.name).Dec(1)
		return err
	}
	metrics.NotificationEvents.WithValues("Events", q.name).Inc(1)
	return nil
}

type deliveredSink struct {
	events.Sink
	name string
}

func (s *deliveredSink) Write(event events.Event) error {
	defer metrics.NotificationsPending.WithValues(s.name).Dec(1)
	return s.Sink.Write(event)
}

// newIgnoredSink drops events whose action is listed and passes the rest
// to sink.
func newIgnoredSink(sink events.Sink, actions []string) events.Sink {
	if len(actions) == 0 {
		return sink
	}
	ignored := make(map[string]bool, len(actions))
	for _, action := range actions {
		ignored[action] = true
	}
	return events.NewFilter(sink, events.MatcherFunc(func(event events.Event) bool {
		e, ok := event.(Event)
		return !ok || !ignored[e.Action]
	}))
}

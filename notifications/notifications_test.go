package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	events "github.com/docker/go-events"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (rs *recordingSink) Write(event events.Event) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, event.(Event))
	return nil
}

func (rs *recordingSink) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.closed = true
	return nil
}

func TestBridge(t *testing.T) {
	sink := &recordingSink{}
	l := NewBridge(SourceRecord{InstanceID: "instance", Portal: "https://portal.test"}, sink)

	target := Target{PublicKey: "pk", HashedDataKey: "dk", Revision: 4, Operation: "SetJSON", DataLink: "AAA"}
	require.NoError(t, l.EntrySet(context.Background(), target))
	require.NoError(t, l.EntryDeleted(context.Background(), target))

	require.Len(t, sink.events, 2)
	require.Equal(t, EventActionSet, sink.events[0].Action)
	require.Equal(t, EventActionDelete, sink.events[1].Action)
	require.Equal(t, target, sink.events[0].Target)
	require.Equal(t, "instance", sink.events[0].Source.InstanceID)
	require.NotEmpty(t, sink.events[0].ID)
	require.NotEqual(t, sink.events[0].ID, sink.events[1].ID)
	require.False(t, sink.events[0].Timestamp.IsZero())
}

func TestPendingQueue(t *testing.T) {
	const n = 100
	sink := &recordingSink{}
	eq := newPendingQueue("test", sink)

	for i := 0; i < n; i++ {
		require.NoError(t, eq.Write(Event{Action: EventActionSet, Target: Target{Revision: uint64(i)}}))
	}
	require.NoError(t, eq.Close())
	require.ErrorIs(t, eq.Write(Event{}), ErrSinkClosed)

	require.True(t, sink.closed)
	require.Len(t, sink.events, n)
	for i, e := range sink.events {
		require.EqualValues(t, i, e.Target.Revision, "events must be delivered in order")
	}
}

func TestIgnoredSink(t *testing.T) {
	sink := &recordingSink{}
	s := newIgnoredSink(sink, []string{EventActionDelete})

	require.NoError(t, s.Write(Event{Action: EventActionSet}))
	require.NoError(t, s.Write(Event{Action: EventActionDelete}))
	require.Len(t, sink.events, 1)
	require.Equal(t, EventActionSet, sink.events[0].Action)

	require.Same(t, sink, newIgnoredSink(sink, nil))

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Write(Event{Action: EventActionSet}), ErrSinkClosed)
}

func TestEndpoint(t *testing.T) {
	var (
		calls    int32
		received = make(chan Envelope, 10)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != EventsMediaType || r.Header.Get("Authorization") != "secret" {
			t.Errorf("unexpected headers: %v", r.Header)
		}
		// Fail the first attempt to exercise the retrying sink.
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Error(err)
		}
		received <- env
	}))
	defer srv.Close()

	e := NewEndpoint("test", srv.URL, EndpointConfig{
		Headers:        http.Header{"Authorization": {"secret"}},
		Timeout:        time.Second,
		Threshold:      1,
		Backoff:        10 * time.Millisecond,
		IgnoredActions: []string{EventActionDelete},
	})
	require.Equal(t, "test", e.Name())
	require.Equal(t, srv.URL, e.URL())

	require.NoError(t, e.Write(Event{Action: EventActionDelete}))
	require.NoError(t, e.Write(Event{ID: "1", Action: EventActionSet, Target: Target{Revision: 9}}))

	select {
	case env := <-received:
		require.Len(t, env.Events, 1)
		require.Equal(t, "1", env.Events[0].ID)
		require.EqualValues(t, 9, env.Events[0].Target.Revision)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
	require.NoError(t, e.Close())
	require.Len(t, received, 0, "ignored actions must not be delivered")
}

func TestHTTPSinkRejectsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	hs := newHTTPSink("test", srv.URL, time.Second, nil)
	require.Error(t, hs.Write(Event{Action: EventActionSet}))
	require.NoError(t, hs.Close())
	require.ErrorIs(t, hs.Write(Event{}), ErrSinkClosed)
}

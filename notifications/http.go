package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	events "github.com/docker/go-events"
	"github.com/skynetlabs/skynet/metrics"
)

// httpSink implements a single-flight, http notification endpoint. This is
// very lightweight in that it only makes an attempt at an http request.
// Reliability should be provided by the caller.
type httpSink struct {
	url string

	mu     sync.Mutex
	closed bool
	client *http.Client

	name    string
	headers http.Header
}

// newHTTPSink returns an unreliable, single-flight http sink. Wrap in other
// sinks for increased reliability.
func newHTTPSink(name, u string, timeout time.Duration, headers http.Header) *httpSink {
	return &httpSink{
		url:     u,
		name:    name,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Write makes an attempt to notify the endpoint, returning an error if it
// fails. It is the caller's responsibility to retry on error. The events are
// accepted or rejected as a group.
func (hs *httpSink) Write(event events.Event) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.closed {
		return ErrSinkClosed
	}

	e, ok := event.(Event)
	if !ok {
		return fmt.Errorf("%s: unexpected event type %T", hs, event)
	}

	envelope := Envelope{Events: []Event{e}}

	p, err := json.MarshalIndent(envelope, "", "   ")
	if err != nil {
		metrics.NotificationEvents.WithValues("Errors", hs.name).Inc(1)
		return fmt.Errorf("%s: error marshaling event envelope: %v", hs, err)
	}

	req, err := http.NewRequest(http.MethodPost, hs.url, bytes.NewReader(p))
	if err != nil {
		metrics.NotificationEvents.WithValues("Errors", hs.name).Inc(1)
		return fmt.Errorf("%s: error creating request: %v", hs, err)
	}
	for k, vs := range hs.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", EventsMediaType)

	resp, err := hs.client.Do(req)
	if err != nil {
		metrics.NotificationEvents.WithValues("Errors", hs.name).Inc(1)
		return fmt.Errorf("%s: error posting: %v", hs, err)
	}
	defer resp.Body.Close()

	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	metrics.NotificationStatus.WithValues(status, hs.name).Inc(1)

	// The notifier will treat any 2xx or 3xx response as accepted by the
	// endpoint.
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		metrics.NotificationEvents.WithValues("Successes", hs.name).Inc(1)
		return nil
	default:
		metrics.NotificationEvents.WithValues("Failures", hs.name).Inc(1)
		return fmt.Errorf("%v: response status %v unaccepted", hs, resp.Status)
	}
}

// Close the endpoint
func (hs *httpSink) Close() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.closed {
		return fmt.Errorf("httpsink: already closed")
	}

	hs.closed = true
	return nil
}

func (hs *httpSink) String() string {
	return fmt.Sprintf("httpSink{%s}", hs.url)
}

package notifications

import (
	"net/http"
	"time"

	events "github.com/docker/go-events"
)

// EndpointConfig covers the optional configuration parameters for an active
// endpoint.
type EndpointConfig struct {
	Headers        http.Header   `yaml:"headers"`
	Timeout        time.Duration `yaml:"timeout"`
	Threshold      int           `yaml:"threshold"`
	Backoff        time.Duration `yaml:"backoff"`
	IgnoredActions []string      `yaml:"ignoredactions"`
}

// defaults set any zero-valued fields to a reasonable default.
func (ec *EndpointConfig) defaults() {
	if ec.Timeout <= 0 {
		ec.Timeout = time.Second
	}

	if ec.Threshold <= 0 {
		ec.Threshold = 10
	}

	if ec.Backoff <= 0 {
		ec.Backoff = time.Second
	}
}

// Endpoint is a reliable, queued, thread-safe sink that notify external http
// services when events are written. Writes are non-blocking and always
// succeed for callers but events may be queued internally.
type Endpoint struct {
	events.Sink
	url  string
	name string

	EndpointConfig
}

// NewEndpoint returns a running endpoint, ready to receive events.
func NewEndpoint(name, url string, config EndpointConfig) *Endpoint {
	var endpoint Endpoint
	endpoint.name = name
	endpoint.url = url
	endpoint.EndpointConfig = config
	endpoint.defaults()

	// Configures the inmemory queue, retry, http pipeline.
	endpoint.Sink = newHTTPSink(endpoint.name, endpoint.url, endpoint.Timeout, endpoint.Headers)
	endpoint.Sink = events.NewRetryingSink(endpoint.Sink, events.NewBreaker(endpoint.Threshold, endpoint.Backoff))
	endpoint.Sink = newPendingQueue(name, endpoint.Sink)
	endpoint.Sink = newIgnoredSink(endpoint.Sink, endpoint.IgnoredActions)

	return &endpoint
}

// Name returns the name of the endpoint, generally used for debugging.
func (e *Endpoint) Name() string {
	return e.name
}

// URL returns the url of the endpoint.
func (e *Endpoint) URL() string {
	return e.url
}

// Package transport executes requests against a Skynet portal. It owns the
// retry policy, the common headers and the translation of error payloads.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/version"
)

const (
	// DefaultRetryMax is the number of retries after the first attempt.
	DefaultRetryMax = 2

	// MaxRetryMax bounds RetryMax so a request made while a registry entry
	// is locked cannot keep other writers waiting indefinitely.
	MaxRetryMax = 10

	// DefaultTimeout bounds a single attempt, including reading the body.
	DefaultTimeout = 5 * time.Minute

	apiKeyHeader = "Skynet-Api-Key"
)

// Options configures a Transport.
type Options struct {
	// PortalURL is the base URL requests are resolved against.
	PortalURL string

	// APIKey is sent in the Skynet-Api-Key header when set.
	APIKey string

	// CustomCookie is sent as the Cookie header when set.
	CustomCookie string

	// UserAgent defaults to version.UserAgent().
	UserAgent string

	// RetryMax is the number of retries on connection errors, 5xx and 429.
	// Negative disables retries; zero selects DefaultRetryMax.
	RetryMax int

	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Timeout bounds each attempt of the default HTTP client. Zero selects
	// DefaultTimeout and negative disables it. It is ignored when
	// HTTPClient is set.
	Timeout time.Duration

	// HTTPClient is the underlying client. It defaults to a pooled client.
	HTTPClient *http.Client
}

// Request describes one portal call.
type Request struct {
	Method string

	// Path is resolved against the portal URL. It may already contain a
	// query string.
	Path   string
	Query  url.Values
	Header http.Header

	Body        []byte
	ContentType string
}

// Response is a fully read portal response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ResponseTransform runs on a successful response before Execute returns.
// Callers use it to decode bodies that need more care than generic JSON
// decoding, such as revision numbers beyond float64 precision.
type ResponseTransform func(resp *Response) error

// Transport performs portal requests with bounded retries.
type Transport struct {
	base      *url.URL
	client    *retryablehttp.Client
	apiKey    string
	cookie    string
	userAgent string
}

// New returns a Transport for the portal in opts.
func New(opts Options) (*Transport, error) {
	base, err := url.Parse(opts.PortalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal url %q: %w", opts.PortalURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid portal url %q: scheme must be http or https", opts.PortalURL)
	}

	retryMax := opts.RetryMax
	switch {
	case retryMax == 0:
		retryMax = DefaultRetryMax
	case retryMax < 0:
		retryMax = 0
	case retryMax > MaxRetryMax:
		retryMax = MaxRetryMax
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	switch {
	case opts.HTTPClient != nil:
		rc.HTTPClient = opts.HTTPClient
	case opts.Timeout == 0:
		rc.HTTPClient.Timeout = DefaultTimeout
	case opts.Timeout > 0:
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.Logger = nil
	rc.RequestLogHook = logRetry
	// Hand the last response back instead of a generic "giving up" error,
	// so the portal's message reaches the caller.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &Transport{
		base:      base,
		client:    rc,
		apiKey:    opts.APIKey,
		cookie:    opts.CustomCookie,
		userAgent: userAgent,
	}, nil
}

// PortalURL returns the portal base URL.
func (t *Transport) PortalURL() string {
	return t.base.String()
}

// URL resolves a portal path and query against the base URL.
func (t *Transport) URL(path string, query url.Values) string {
	u := *t.base
	p, rawQuery, _ := strings.Cut(path, "?")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(p, "/")
	q, _ := url.ParseQuery(rawQuery)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Execute performs req. Statuses outside 200-399 are returned as errors:
// a PortalError when the portal sent a message, otherwise an errcode or
// UnexpectedHTTPStatusError. transform may be nil.
func (t *Transport) Execute(ctx context.Context, req Request, transform ResponseTransform) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := t.URL(req.Path, req.Query)

	var body interface{}
	if req.Body != nil {
		body = req.Body
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}
	hreq.Header.Set("User-Agent", t.userAgent)
	if t.apiKey != "" {
		hreq.Header.Set(apiKeyHeader, t.apiKey)
	}
	if t.cookie != "" {
		hreq.Header.Set("Cookie", t.cookie)
	}

	log := dcontext.GetLoggerWithFields(ctx, map[any]any{"http.request.method": method, "http.request.url": target})
	log.Debug("portal request")

	resp, err := t.client.Do(hreq)
	if err != nil {
		metrics.TransportRequests.WithValues(method, "error").Inc(1)
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	metrics.TransportRequests.WithValues(method, strconv.Itoa(resp.StatusCode)).Inc(1)

	if err := HandleHTTPResponseError(resp); err != nil {
		log.WithField("http.response.status", resp.StatusCode).Debugf("portal error: %v", err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response of %s %s: %w", method, target, err)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if transform != nil {
		if err := transform(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	metrics.TransportRetries.Inc(1)
	dcontext.GetLogger(req.Context()).Warnf("retrying %s %s (attempt %d)", req.Method, req.URL, attempt+1)
}

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, h http.HandlerFunc, opts Options) *Transport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.PortalURL = srv.URL
	opts.RetryWaitMin = time.Millisecond
	opts.RetryWaitMax = 2 * time.Millisecond
	tr, err := New(opts)
	require.NoError(t, err)
	return tr
}

func TestExecuteHeaders(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("Skynet-Api-Key"))
		require.Equal(t, "skynet-jwt=abc", r.Header.Get("Cookie"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "/skynet/registry", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("timeout"))
		require.Equal(t, "x", r.URL.Query().Get("existing"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"a":1}`, string(body))
		w.Write([]byte("ok"))
	}, Options{APIKey: "key", CustomCookie: "skynet-jwt=abc", UserAgent: "test-agent"})

	var transformed bool
	resp, err := tr.Execute(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        "/skynet/registry?existing=x",
		Query:       url.Values{"timeout": {"5"}},
		Body:        []byte(`{"a":1}`),
		ContentType: "application/json",
	}, func(resp *Response) error {
		transformed = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, transformed)
	require.Equal(t, "ok", string(resp.Body))
}

func TestExecuteDefaultUserAgent(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("User-Agent"), "skynet-go/")
		require.Empty(t, r.Header.Get("Skynet-Api-Key"))
	}, Options{})
	_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
	require.NoError(t, err)
}

func TestExecutePortalMessage(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"provided revision number is invalid"}`))
	}, Options{})

	_, err := tr.Execute(context.Background(), Request{Path: "/skynet/registry"}, nil)
	var pe *PortalError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "provided revision number is invalid", err.Error())
	require.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestExecuteNotFound(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, Options{})
	_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
	require.True(t, IsNotFound(err))
	var se *UnexpectedHTTPStatusError
	require.True(t, errors.As(err, &se))
}

func TestExecuteStatusCodes(t *testing.T) {
	for _, tc := range []struct {
		status int
		code   errcode.ErrorCode
	}{
		{http.StatusUnauthorized, errcode.ErrorCodeUnauthorized},
		{http.StatusForbidden, errcode.ErrorCodeDenied},
	} {
		tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}, Options{})
		_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
		require.True(t, errors.Is(err, tc.code), "status %d: %v", tc.status, err)
	}

	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{not json`))
	}, Options{})
	_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
	var re *UnexpectedHTTPResponseError
	require.True(t, errors.As(err, &re))
}

func TestExecuteRetriesAreBounded(t *testing.T) {
	var calls int32
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream down"}`))
	}, Options{RetryMax: 2})

	_, err := tr.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/", Body: []byte("x")}, nil)
	require.Error(t, err)
	require.Equal(t, "upstream down", err.Error())
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestExecuteRetrySucceeds(t *testing.T) {
	var calls int32
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}, Options{})

	resp, err := tr.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/", Body: []byte("again")}, nil)
	require.NoError(t, err)
	require.Equal(t, "again", string(resp.Body))
}

func TestExecuteNoRetryOnClientError(t *testing.T) {
	var calls int32
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, Options{})
	_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{RetryMax: -1, Timeout: 50 * time.Millisecond})
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := tr.Execute(context.Background(), Request{Path: "/"}, nil)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestNewDefaultTimeout(t *testing.T) {
	tr, err := New(Options{PortalURL: "https://siasky.net"})
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, tr.client.HTTPClient.Timeout)

	tr, err = New(Options{PortalURL: "https://siasky.net", Timeout: -1})
	require.NoError(t, err)
	require.Zero(t, tr.client.HTTPClient.Timeout)

	custom := &http.Client{}
	tr, err = New(Options{PortalURL: "https://siasky.net", Timeout: time.Second, HTTPClient: custom})
	require.NoError(t, err)
	require.Same(t, custom, tr.client.HTTPClient)
	require.Zero(t, custom.Timeout)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{PortalURL: "ftp://portal"})
	require.Error(t, err)
	_, err = New(Options{PortalURL: "://"})
	require.Error(t, err)
}

func TestURL(t *testing.T) {
	tr, err := New(Options{PortalURL: "https://siasky.net/base/"})
	require.NoError(t, err)
	require.Equal(t, "https://siasky.net/base/skynet/skyfile", tr.URL("/skynet/skyfile", nil))
	require.Equal(t, "https://siasky.net/base/AQ?a=1&b=2", tr.URL("AQ?b=2", url.Values{"a": {"1"}}))
}

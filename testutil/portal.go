// Package testutil runs a development portal for tests.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/portal"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// Portal is a development portal backed by an in-memory store and served
// on a loopback address.
type Portal struct {
	*httptest.Server
	App *portal.App

	mu            sync.Mutex
	failWrites    int
	registryPosts int
	uploads       int
}

// NewPortal starts a portal that is closed when the test ends.
func NewPortal(t testing.TB, options portal.Options) *Portal {
	t.Helper()
	p := &Portal{App: portal.NewApp(context.Background(), portal.NewMemoryStore(), options)}
	p.Server = httptest.NewServer(p.intercept(portal.Handler(p.App, nil)))
	t.Cleanup(func() {
		p.Server.Close()
		_ = p.App.Close()
	})
	return p
}

// FailRegistryWrites makes the next n registry writes fail with a 503
// before they reach the store.
func (p *Portal) FailRegistryWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWrites = n
}

// RegistryPosts returns the number of registry writes received.
func (p *Portal) RegistryPosts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registryPosts
}

// Uploads returns the number of uploads received.
func (p *Portal) Uploads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploads
}

func (p *Portal) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			p.mu.Lock()
			switch r.URL.Path {
			case skynet.DefaultRegistryEndpointPath:
				p.registryPosts++
				if p.failWrites > 0 {
					p.failWrites--
					p.mu.Unlock()
					_ = errcode.ServeJSON(w, errcode.ErrorCodeUnavailable.WithMessage("registry write rejected"))
					return
				}
			case "/skynet/skyfile":
				p.uploads++
			}
			p.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

// Transport returns a transport to the portal that does not retry.
func (p *Portal) Transport(t testing.TB) *transport.Transport {
	t.Helper()
	tr, err := transport.New(transport.Options{PortalURL: p.URL, RetryMax: -1})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

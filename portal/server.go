package portal

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/skynetlabs/skynet/internal/dcontext"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	// Addr is the listen address.
	Addr string

	// AccessLog receives combined access log lines. Nil disables them.
	AccessLog io.Writer

	// DrainTimeout bounds graceful shutdown.
	DrainTimeout time.Duration
}

// A Server serves an App over HTTP.
type Server struct {
	app     *App
	server  *http.Server
	ln      net.Listener
	options ServerOptions
}

// NewServer listens on options.Addr.
func NewServer(app *App, options ServerOptions) (*Server, error) {
	ln, err := net.Listen("tcp", options.Addr)
	if err != nil {
		return nil, err
	}
	dcontext.GetLogger(app).Infof("listening on %v", ln.Addr())

	return &Server{
		app:     app,
		server:  &http.Server{Handler: Handler(app, options.AccessLog), ReadHeaderTimeout: 10 * time.Second},
		ln:      ln,
		options: options,
	}, nil
}

// Handler wraps app with panic recovery, a liveness route and, when out is
// not nil, access logging.
func Handler(app *App, out io.Writer) http.Handler {
	var handler http.Handler = app
	handler = alive("/", handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)(handler)
	if out != nil {
		handler = handlers.CombinedLoggingHandler(out, handler)
	}
	return handler
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// ListenAndServe serves until ctx is done, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	drain := s.options.DrainTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	dcontext.GetLogger(s.app).Infof("shutting down, draining for %s", drain)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// alive answers 200 on path and passes everything else to handler.
func alive(path string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

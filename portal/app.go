// Package portal implements a development portal: the registry and skyfile
// endpoints that clients of this module talk to, backed by an in-memory or
// redis Store. It serves local development and tests; it does not store
// anything on a storage network.
package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/internal/requestutil"
	"github.com/skynetlabs/skynet/internal/uuid"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// Route names.
const (
	RouteNameRegistry = "registry"
	RouteNameSkyfile  = "skyfile"
	RouteNameDownload = "download"
	RouteNameMetrics  = "metrics"
)

// RequestIDHeader echoes the id assigned to every request.
const RequestIDHeader = "Skynet-Request-Id"

const (
	// DefaultMaxUploadSize bounds the body of an upload.
	DefaultMaxUploadSize = 64 << 20

	maxEntryBodySize = 64 << 10
	maxResolveDepth  = 8
)

// Options configures an App.
type Options struct {
	// APIKey, when set, must be presented by every request.
	APIKey string

	// MaxUploadSize bounds uploads. Zero selects DefaultMaxUploadSize.
	MaxUploadSize int64

	// Metrics exposes prometheus metrics on /metrics.
	Metrics bool
}

// App is the portal application. It only implements ServeHTTP and can be
// wrapped in other handlers accordingly.
type App struct {
	context.Context

	// InstanceID is a unique id assigned to the application on each
	// creation.
	InstanceID string

	store   Store
	options Options
	router  *mux.Router
}

// NewApp returns an App serving from store.
func NewApp(ctx context.Context, store Store, options Options) *App {
	if options.MaxUploadSize <= 0 {
		options.MaxUploadSize = DefaultMaxUploadSize
	}
	app := &App{
		InstanceID: uuid.NewString(),
		store:      store,
		options:    options,
		router:     mux.NewRouter(),
	}
	app.Context = dcontext.WithLogger(ctx, dcontext.GetLoggerWithField(ctx, "instance.id", app.InstanceID))

	app.router.Path(skynet.DefaultRegistryEndpointPath).Methods(http.MethodGet).Name(RouteNameRegistry).Handler(app.dispatcher(app.getEntry))
	app.router.Path(skynet.DefaultRegistryEndpointPath).Methods(http.MethodPost).Name(RouteNameRegistry).Handler(app.dispatcher(app.postEntry))
	app.router.Path("/skynet/skyfile").Methods(http.MethodPost).Name(RouteNameSkyfile).Handler(app.dispatcher(app.uploadSkyfile))
	if options.Metrics {
		app.router.Path("/metrics").Methods(http.MethodGet).Name(RouteNameMetrics).Handler(metrics.Handler())
	}
	app.router.Path("/{skylink:[a-zA-Z0-9_-]{46}|[a-v0-9]{55}}").Methods(http.MethodGet, http.MethodHead).Name(RouteNameDownload).Handler(app.dispatcher(app.download))
	app.router.NotFoundHandler = app.dispatcher(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errcode.ErrorCodeUnsupported.WithDetail(r.URL.Path)
	})
	return app
}

// Close releases the store.
func (app *App) Close() error {
	return app.store.Close()
}

func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.router.ServeHTTP(w, r)
}

// handlerFunc serves one request. A returned error is served as a JSON
// message envelope.
type handlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// dispatcher wraps h with the request context, authorization and metrics.
func (app *App) dispatcher(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set(RequestIDHeader, requestID)

		ctx := dcontext.WithValues(app, map[string]any{
			"http.request.id":         requestID,
			"http.request.method":     r.Method,
			"http.request.uri":        r.RequestURI,
			"http.request.remoteaddr": requestutil.RemoteAddr(r),
		})
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx,
			"http.request.id",
			"http.request.method",
			"http.request.uri",
			"http.request.remoteaddr"))

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			route = current.GetName()
		}
		defer metrics.PortalRequests.WithValues(route).UpdateSince(start)

		err := app.authorized(r)
		if err == nil {
			err = h(ctx, w, r)
		}
		if err != nil {
			app.serveError(ctx, w, err)
		}
	})
}

func (app *App) authorized(r *http.Request) error {
	if app.options.APIKey == "" || requestutil.APIKey(r) == app.options.APIKey {
		return nil
	}
	return errcode.ErrorCodeUnauthorized.WithDetail("missing or invalid api key")
}

func (app *App) serveError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := dcontext.GetLogger(ctx)
	if _, ok := err.(errcode.ErrorCoder); ok {
		logger.WithError(err).Debug("request failed")
	} else {
		logger.WithError(err).Error("request failed")
	}
	if serveErr := errcode.ServeJSON(w, err); serveErr != nil {
		logger.Errorf("error serving error json: %v (from %v)", serveErr, err)
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPDeps holds the handlers mounted on the HTTP router.
type HTTPDeps struct {
	// Health answers /healthz.
	Health http.Handler
	// Metrics answers /metrics. If nil, the route is not mounted.
	Metrics http.Handler
	// Routes registers further routes, e.g. the calendar feeds.
	Routes []func(r *mux.Router)
}

// NewRouter returns the HTTP router wrapped with otelhttp.
func NewRouter(deps HTTPDeps) http.Handler {
	r := mux.NewRouter()
	if deps.Health != nil {
		r.Handle("/healthz", deps.Health).Methods(http.MethodGet, http.MethodHead)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}
	for _, register := range deps.Routes {
		register(r)
	}
	return otelhttp.NewHandler(r, "pulsedeck.http", otelhttp.WithSpanNameFormatter(routeSpanName))
}

func routeSpanName(_ string, r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

// NewHTTPServer returns an http.Server for addr with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Package web routes HTTP requests to loaded controller modules and exposes
// module inspection endpoints.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mambaweb/mamba/core/module"
	"github.com/mambaweb/mamba/ports"
	"github.com/mambaweb/mamba/web/response"
	"github.com/rs/zerolog"
)

// IndexController serves "/" when a controller with this name is loaded.
const IndexController = "index"

// Controller renders a response for a request.
type Controller interface {
	Render(r *http.Request) *response.Response
}

// ControllerFunc adapts a function to Controller. Script modules return
// plain functions of this shape from their factory.
type ControllerFunc func(r *http.Request) *response.Response

// Render calls f(r).
func (f ControllerFunc) Render(r *http.Request) *response.Response {
	return f(r)
}

// ModuleSource is the read side of a module registry.
type ModuleSource interface {
	Kind() string
	Lookup(name string) (module.Entry, bool)
	Entries() []module.Entry
	Watch() module.WatchState
	LastReloadError(name string) error
}

// RequestObserver records controller traffic.
type RequestObserver interface {
	ObserveRequest(controller string, code int, d time.Duration)
}

// Deps contains dependencies for the router.
type Deps struct {
	Controllers    ModuleSource
	Models         ModuleSource       // optional, listed by /_mamba/modules
	Journal        ports.JournalStore // optional, serves /_mamba/history
	MetricsHandler http.Handler       // optional
	MetricsPath    string             // default "/metrics"
	Observer       RequestObserver    // optional
	Logger         zerolog.Logger
	Version        string
	Timeout        time.Duration // default 60s
}

// Handler provides the HTTP endpoints.
type Handler struct {
	controllers ModuleSource
	models      ModuleSource
	journal     ports.JournalStore
	observer    RequestObserver
	logger      zerolog.Logger
	version     string
	startTime   time.Time
}

// NewHandler creates a handler from deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		controllers: deps.Controllers,
		models:      deps.Models,
		journal:     deps.Journal,
		observer:    deps.Observer,
		logger:      deps.Logger,
		version:     deps.Version,
		startTime:   time.Now(),
	}
}

// NewRouter creates the main HTTP router.
func NewRouter(deps Deps) chi.Router {
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	if deps.Timeout == 0 {
		deps.Timeout = 60 * time.Second
	}
	h := NewHandler(deps)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewAccessLogMiddleware(deps.Logger, "/health", deps.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Timeout))

	r.Get("/health", h.Health)
	r.Get("/version", h.Version)

	if deps.MetricsHandler != nil {
		r.Handle(deps.MetricsPath, deps.MetricsHandler)
	}

	r.Route("/_mamba", func(r chi.Router) {
		r.Get("/modules", h.Modules)
		r.Get("/modules/{kind}/{name}", h.Module)
		r.Get("/history", h.History)
	})

	r.HandleFunc("/", h.Index)
	r.HandleFunc("/{controller}", h.Dispatch)
	r.HandleFunc("/{controller}/*", h.Dispatch)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.write(w, req, response.NotFound(nil, nil))
	})

	return r
}

package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mambaweb/mamba/core/module"
	"github.com/mambaweb/mamba/ports"
	"github.com/mambaweb/mamba/web/response"
)

// Health returns a simple liveness check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, response.Ok(map[string]string{"status": "ok"}, nil))
}

// Version returns the framework version and uptime.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, response.Ok(map[string]string{
		"version": h.version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	}, nil))
}

// Index serves "/" with the index controller.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, IndexController)
}

// Dispatch serves /{controller} and everything below it.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "controller"))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, name string) {
	start := time.Now()
	code, found := h.render(w, r, name)
	if found && h.observer != nil {
		h.observer.ObserveRequest(name, code, time.Since(start))
	}
}

// render runs the named controller and returns the status written.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	var entry module.Entry
	ok := false
	if h.controllers != nil {
		entry, ok = h.controllers.Lookup(name)
	}
	if !ok || !entry.Loaded {
		resp := response.NotFound(nil, nil)
		h.write(w, r, resp)
		return resp.Code, false
	}

	var resp *response.Response
	switch c := entry.Instance.(type) {
	case Controller:
		resp = c.Render(r)
	case func(*http.Request) *response.Response:
		resp = c(r)
	case http.Handler:
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		c.ServeHTTP(ww, r)
		if ww.Status() == 0 {
			return http.StatusOK, true
		}
		return ww.Status(), true
	default:
		resp = response.NotImplemented(r.URL.Path, fmt.Sprintf("controller %s (%T) cannot render responses", name, entry.Instance))
	}

	if resp == nil {
		resp = response.Unknown()
	}
	h.write(w, r, resp)
	return resp.Code, true
}

// write sends resp, falling back to a 500 when the subject cannot be encoded.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, resp *response.Response) {
	if err := resp.Write(w); err != nil {
		h.logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("write response failed")
		response.InternalServerError("Internal Server Error").Write(w)
	}
}

type moduleInfo struct {
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	SourcePath      string    `json:"source_path"`
	ImportPath      string    `json:"import_path"`
	Loaded          bool      `json:"loaded"`
	LoadedAt        time.Time `json:"loaded_at"`
	Reloads         int       `json:"reloads"`
	InstanceType    string    `json:"instance_type"`
	LastReloadError string    `json:"last_reload_error,omitempty"`
}

type registryInfo struct {
	Kind    string       `json:"kind"`
	Watch   watchInfo    `json:"watch"`
	Modules []moduleInfo `json:"modules"`
}

type watchInfo struct {
	Enabled bool `json:"enabled"`
	Active  bool `json:"active"`
}

func (h *Handler) sources() []ModuleSource {
	var out []ModuleSource
	for _, src := range []ModuleSource{h.controllers, h.models} {
		if src != nil {
			out = append(out, src)
		}
	}
	return out
}

func describe(src ModuleSource, e module.Entry) moduleInfo {
	info := moduleInfo{
		Name:         e.Name,
		Kind:         src.Kind(),
		SourcePath:   e.SourcePath,
		ImportPath:   e.ImportPath,
		Loaded:       e.Loaded,
		LoadedAt:     e.LoadedAt,
		Reloads:      e.Reloads,
		InstanceType: fmt.Sprintf("%T", e.Instance),
	}
	if err := src.LastReloadError(e.Name); err != nil {
		info.LastReloadError = err.Error()
	}
	return info
}

// Modules lists the registered modules of every registry, optionally
// filtered by ?kind=.
func (h *Handler) Modules(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")

	registries := []registryInfo{}
	for _, src := range h.sources() {
		if kind != "" && src.Kind() != kind {
			continue
		}
		state := src.Watch()
		info := registryInfo{
			Kind:    src.Kind(),
			Watch:   watchInfo{Enabled: state.Enabled, Active: state.Active},
			Modules: []moduleInfo{},
		}
		for _, e := range src.Entries() {
			info.Modules = append(info.Modules, describe(src, e))
		}
		registries = append(registries, info)
	}

	h.write(w, r, response.Ok(map[string]any{"registries": registries}, nil))
}

// Module describes one module.
func (h *Handler) Module(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	name := chi.URLParam(r, "name")

	for _, src := range h.sources() {
		if src.Kind() != kind {
			continue
		}
		if e, ok := src.Lookup(name); ok {
			h.write(w, r, response.Ok(describe(src, e), nil))
			return
		}
	}
	h.write(w, r, response.NotFound(fmt.Sprintf("module %s/%s not found", kind, name), nil))
}

// History lists journal entries, filtered by ?module=, ?kind=, ?event=
// and ?limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.write(w, r, response.NotImplemented(r.URL.Path, "module journal is disabled"))
		return
	}

	q := r.URL.Query()
	query := ports.JournalQuery{
		Module: q.Get("module"),
		Kind:   q.Get("kind"),
		Event:  q.Get("event"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.write(w, r, response.BadRequest(fmt.Sprintf("invalid limit %q", v), nil))
			return
		}
		query.Limit = limit
	}

	entries, err := h.journal.List(r.Context(), query)
	if err != nil {
		h.logger.Error().Err(err).Msg("list journal failed")
		h.write(w, r, response.InternalServerError("list journal failed"))
		return
	}
	if entries == nil {
		entries = []ports.JournalEntry{}
	}
	h.write(w, r, response.Ok(map[string]any{"entries": entries}, nil))
}

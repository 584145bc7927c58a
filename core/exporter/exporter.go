// Package exporter provides pluggable metrics export for module lifecycle
// events and controller traffic.
package exporter

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/mambaweb/mamba/core/events"
)

// Exporter is the base interface for all metrics exporters.
type Exporter interface {
	// Name returns the exporter identifier (e.g., "prometheus", "log").
	Name() string

	// Start starts the exporter.
	Start(ctx context.Context) error

	// Stop stops the exporter gracefully.
	Stop(ctx context.Context) error
}

// PullExporter exposes metrics for scraping.
type PullExporter interface {
	Exporter

	// Handler returns an HTTP handler for the metrics endpoint.
	Handler() http.Handler

	// Collect refreshes gauges from their sources before exposure.
	Collect(ctx context.Context) error
}

// StreamExporter receives module lifecycle events as they happen.
type StreamExporter interface {
	Exporter

	// Stream handles one event immediately.
	Stream(ctx context.Context, event events.Event) error
}

// Registry manages multiple exporters.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates a new exporter registry.
func NewRegistry() *Registry {
	return &Registry{exporters: make(map[string]Exporter)}
}

// Register adds an exporter, replacing one with the same name.
func (r *Registry) Register(exp Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[exp.Name()] = exp
}

// Get returns an exporter by name.
func (r *Registry) Get(name string) (Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.exporters[name]
	return exp, ok
}

// All returns all registered exporters ordered by name.
func (r *Registry) All() []Exporter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Exporter, 0, len(r.exporters))
	for _, exp := range r.exporters {
		result = append(result, exp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// PullExporters returns all pull-based exporters (for HTTP handler mounting).
func (r *Registry) PullExporters() []PullExporter {
	var result []PullExporter
	for _, exp := range r.All() {
		if pull, ok := exp.(PullExporter); ok {
			result = append(result, pull)
		}
	}
	return result
}

// Start starts all registered exporters.
func (r *Registry) Start(ctx context.Context) error {
	for _, exp := range r.All() {
		if err := exp.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops all registered exporters, returning every failure.
func (r *Registry) Stop(ctx context.Context) error {
	var errs []error
	for _, exp := range r.All() {
		if err := exp.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe forwards every module event on bus to the stream exporters.
func (r *Registry) Subscribe(bus *events.Bus) {
	bus.Subscribe("module.*", func(ctx context.Context, ev events.Event) error {
		var errs []error
		for _, exp := range r.All() {
			if s, ok := exp.(StreamExporter); ok {
				if err := s.Stream(ctx, ev); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	})
}

package exporter

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mambaweb/mamba/core/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ModuleSource reports the size of a module registry.
type ModuleSource interface {
	Kind() string
	Count() int
}

// PrometheusExporter exposes metrics for Prometheus scraping.
type PrometheusExporter struct {
	mu       sync.RWMutex
	registry *prometheus.Registry
	prefix   string
	sources  []ModuleSource

	moduleEvents   *prometheus.CounterVec
	reloadFailures *prometheus.CounterVec
	modules        *prometheus.GaugeVec
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Prefix is added to all metric names (default: "mamba").
	Prefix string

	// Labels are constant labels added to all metrics.
	Labels map[string]string

	// Buckets for the request duration histogram (in seconds).
	Buckets []float64

	// Sources are polled by Collect for the module gauge.
	Sources []ModuleSource
}

// DefaultPrometheusBuckets returns default histogram buckets.
func DefaultPrometheusBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// NewPrometheusExporter creates a new Prometheus exporter with its own registry.
func NewPrometheusExporter(cfg PrometheusConfig) *PrometheusExporter {
	if cfg.Prefix == "" {
		cfg.Prefix = "mamba"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = DefaultPrometheusBuckets()
	}
	constLabels := prometheus.Labels(cfg.Labels)

	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		prefix:   cfg.Prefix,
		sources:  cfg.Sources,
	}

	e.moduleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        cfg.Prefix + "_module_events_total",
			Help:        "Module lifecycle events by kind and event name",
			ConstLabels: constLabels,
		},
		[]string{"kind", "event"},
	)

	e.reloadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        cfg.Prefix + "_module_reload_failures_total",
			Help:        "Module reloads that kept the previous version",
			ConstLabels: constLabels,
		},
		[]string{"kind", "module"},
	)

	e.modules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        cfg.Prefix + "_modules",
			Help:        "Modules currently registered",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        cfg.Prefix + "_http_requests_total",
			Help:        "Controller requests by controller and status code",
			ConstLabels: constLabels,
		},
		[]string{"controller", "code"},
	)

	e.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        cfg.Prefix + "_http_request_duration_seconds",
			Help:        "Controller request duration in seconds",
			Buckets:     cfg.Buckets,
			ConstLabels: constLabels,
		},
		[]string{"controller"},
	)

	e.registry.MustRegister(
		e.moduleEvents,
		e.reloadFailures,
		e.modules,
		e.requests,
		e.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return e
}

// Ensure interface compliance.
var (
	_ PullExporter   = (*PrometheusExporter)(nil)
	_ StreamExporter = (*PrometheusExporter)(nil)
)

// Name returns the exporter name.
func (e *PrometheusExporter) Name() string {
	return "prometheus"
}

// Start performs an initial collection.
func (e *PrometheusExporter) Start(ctx context.Context) error {
	return e.Collect(ctx)
}

// Stop stops the Prometheus exporter.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	return nil
}

// Track adds module sources polled by Collect.
func (e *PrometheusExporter) Track(sources ...ModuleSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, sources...)
}

// Handler returns the HTTP handler for the metrics endpoint. Gauges are
// refreshed from the tracked sources on every scrape.
func (e *PrometheusExporter) Handler() http.Handler {
	h := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = e.Collect(r.Context())
		h.ServeHTTP(w, r)
	})
}

// Collect sets the module gauge from the tracked sources.
func (e *PrometheusExporter) Collect(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, src := range e.sources {
		e.modules.WithLabelValues(src.Kind()).Set(float64(src.Count()))
	}
	return nil
}

// Stream counts a module lifecycle event.
func (e *PrometheusExporter) Stream(ctx context.Context, ev events.Event) error {
	e.moduleEvents.WithLabelValues(ev.Kind, ev.Name).Inc()

	if ev.Name == events.ModuleReloadFailed {
		e.reloadFailures.WithLabelValues(ev.Kind, ev.Module).Inc()
	}
	if n, ok := ev.Data["count"].(int); ok {
		e.modules.WithLabelValues(ev.Kind).Set(float64(n))
	}
	return nil
}

// ObserveRequest records one controller request.
func (e *PrometheusExporter) ObserveRequest(controller string, code int, d time.Duration) {
	e.requests.WithLabelValues(controller, strconv.Itoa(code)).Inc()
	e.duration.WithLabelValues(controller).Observe(d.Seconds())
}

// Registry returns the underlying Prometheus registry.
// Useful for adding custom metrics.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// WithCustomMetric registers a custom metric with the exporter.
func (e *PrometheusExporter) WithCustomMetric(collector prometheus.Collector) error {
	return e.registry.Register(collector)
}

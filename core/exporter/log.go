package exporter

import (
	"context"

	"github.com/mambaweb/mamba/core/events"
	"github.com/rs/zerolog"
)

// LogExporter writes module lifecycle events to a logger.
// Useful for debugging and development.
type LogExporter struct {
	logger zerolog.Logger
}

// NewLogExporter creates a new log exporter.
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// Name returns the exporter name.
func (e *LogExporter) Name() string {
	return "log"
}

// Start starts the log exporter.
func (e *LogExporter) Start(ctx context.Context) error {
	e.logger.Debug().Msg("log exporter started")
	return nil
}

// Stop stops the log exporter.
func (e *LogExporter) Stop(ctx context.Context) error {
	e.logger.Debug().Msg("log exporter stopped")
	return nil
}

// Stream logs an event immediately. Failures are logged at warn level.
func (e *LogExporter) Stream(ctx context.Context, ev events.Event) error {
	var le *zerolog.Event
	if ev.Err != nil {
		le = e.logger.Warn().Err(ev.Err)
	} else {
		le = e.logger.Info()
	}

	le = le.
		Str("event", ev.Name).
		Str("module", ev.Module).
		Str("kind", ev.Kind).
		Str("path", ev.Path)
	if n, ok := ev.Data["reloads"].(int); ok {
		le = le.Int("reloads", n)
	}
	le.Msg("module event")
	return nil
}

// NoopExporter discards everything.
// Useful as a placeholder or for testing.
type NoopExporter struct{}

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

// Name returns the exporter name.
func (e *NoopExporter) Name() string {
	return "noop"
}

// Start is a no-op.
func (e *NoopExporter) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (e *NoopExporter) Stop(ctx context.Context) error {
	return nil
}

// Stream discards the event.
func (e *NoopExporter) Stream(ctx context.Context, event events.Event) error {
	return nil
}

// Package events provides a synchronous publish/subscribe bus for module
// lifecycle notifications (loaded, reloaded, reload failed).
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle event names published by module registries.
const (
	ModuleLoaded       = "module.loaded"
	ModuleReloaded     = "module.reloaded"
	ModuleReloadFailed = "module.reload_failed"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "module.loaded").
	Name string

	// Module is the name of the module the event is about.
	Module string

	// Kind is the module kind of the emitting registry (e.g., "mamba-controller").
	Kind string

	// Path is the module source path.
	Path string

	// Err is set for failure events.
	Err error

	// Time is when the event happened. Publish fills it when zero.
	Time time.Time

	// Data carries additional payload (registry size, reload count).
	Data map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "module.loaded" - exact match
//   - "module.*" - all module events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order: exact matches
// first, then prefix wildcards, then the global wildcard. Handler errors are
// logged and do not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Str("kind", event.Kind).
		Msg("event emitted")

	for _, handler := range b.match(event.Name) {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// match copies the handlers for name so they run without the lock held.
func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if prefix, _, ok := strings.Cut(name, "."); ok {
		matched = append(matched, b.handlers[prefix+".*"]...)
	}
	matched = append(matched, b.handlers["*"]...)
	return matched
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	return len(b.match(event)) > 0
}

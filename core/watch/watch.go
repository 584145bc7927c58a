// Package watch delivers filesystem change notifications for a directory tree.
//
// A Source attaches a single handler to a root directory. Events are delivered
// one at a time from a single goroutine, so a handler never runs concurrently
// with itself. Closing the returned Subscription releases the OS-level watch.
package watch

import (
	"errors"
)

// ErrUnavailable is returned when a watch cannot be attached (unsupported
// platform, permission denied, descriptor limit reached).
var ErrUnavailable = errors.New("watch unavailable")

// Kind classifies a change event.
type Kind int

const (
	// Other covers removals, renames and attribute changes.
	Other Kind = iota

	// Created is emitted when a file or directory appears.
	Created

	// Modified is emitted when file contents change.
	Modified
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return "other"
	}
}

// Event is a single change notification.
type Event struct {
	Kind Kind
	Path string
}

// Handler receives change events.
type Handler func(Event)

// Subscription is a live watch. Close must be called to release it.
type Subscription interface {
	Close() error
}

// Source attaches watches to directory trees.
type Source interface {
	// Attach starts watching root recursively and delivers events to handler.
	// Errors wrap ErrUnavailable.
	Attach(root string, handler Handler) (Subscription, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(root string, handler Handler) (Subscription, error)

// Attach calls f(root, handler).
func (f SourceFunc) Attach(root string, handler Handler) (Subscription, error) {
	return f(root, handler)
}

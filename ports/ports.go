// Package ports defines interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Module Journal
// -----------------------------------------------------------------------------

// ErrJournalClosed is returned by journal stores after Close.
var ErrJournalClosed = errors.New("journal closed")

// JournalEntry is one persisted module lifecycle event.
type JournalEntry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`  // module.loaded, module.reloaded, module.reload_failed
	Module    string    `json:"module"` // module name
	Kind      string    `json:"kind"`   // registry kind
	Path      string    `json:"path"`
	Error     string    `json:"error,omitempty"`
	Reloads   int       `json:"reloads"`
	CreatedAt time.Time `json:"created_at"`
}

// Failed reports whether the entry records a failure.
func (e JournalEntry) Failed() bool {
	return e.Error != ""
}

// JournalQuery filters journal listings. Zero fields match everything.
type JournalQuery struct {
	Module string
	Kind   string
	Event  string
	Limit  int // default 100
}

// JournalStore persists module lifecycle history.
type JournalStore interface {
	// Record stores an entry, assigning ID and CreatedAt when empty.
	Record(ctx context.Context, entry JournalEntry) (JournalEntry, error)

	// List returns matching entries, newest first.
	List(ctx context.Context, q JournalQuery) ([]JournalEntry, error)

	// Count returns the number of entries for an event name ("" = all).
	Count(ctx context.Context, event string) (int, error)
}

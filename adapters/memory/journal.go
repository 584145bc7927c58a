// Package memory provides in-memory implementations of the ports, used
// when no database is configured and in tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mambaweb/mamba/adapters/idgen"
	"github.com/mambaweb/mamba/ports"
)

// DefaultJournalCapacity is the number of entries kept when none is given.
const DefaultJournalCapacity = 1000

const defaultJournalLimit = 100

// ErrDuplicateID is returned when an entry ID is already recorded.
var ErrDuplicateID = errors.New("journal entry already exists")

// JournalStore is an in-memory implementation of ports.JournalStore. It
// keeps the newest entries up to its capacity and drops the oldest.
type JournalStore struct {
	mu       sync.RWMutex
	entries  []ports.JournalEntry // oldest first
	ids      map[string]bool
	capacity int
	closed   bool

	idgen ports.IDGenerator
	now   func() time.Time
}

// NewJournalStore creates an in-memory journal holding at most capacity
// entries (DefaultJournalCapacity when capacity <= 0).
func NewJournalStore(capacity int) *JournalStore {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &JournalStore{
		ids:      make(map[string]bool),
		capacity: capacity,
		idgen:    idgen.UUID{},
		now:      time.Now,
	}
}

// WithIDGenerator sets the generator for entries recorded without an ID.
func (s *JournalStore) WithIDGenerator(g ports.IDGenerator) *JournalStore {
	s.idgen = g
	return s
}

// WithClock sets the time source for entries recorded without a time.
func (s *JournalStore) WithClock(c ports.Clock) *JournalStore {
	s.now = c.Now
	return s
}

// Ensure interface compliance.
var _ ports.JournalStore = (*JournalStore)(nil)

// Record stores an entry.
func (s *JournalStore) Record(ctx context.Context, entry ports.JournalEntry) (ports.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ports.JournalEntry{}, ports.ErrJournalClosed
	}
	if entry.ID == "" {
		entry.ID = s.idgen.New()
	}
	if s.ids[entry.ID] {
		return ports.JournalEntry{}, ErrDuplicateID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	if len(s.entries) == s.capacity {
		delete(s.ids, s.entries[0].ID)
		s.entries = append(s.entries[:0], s.entries[1:]...)
	}
	s.entries = append(s.entries, entry)
	s.ids[entry.ID] = true
	return entry, nil
}

// List returns matching entries, most recently recorded first.
func (s *JournalStore) List(ctx context.Context, q ports.JournalQuery) ([]ports.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ports.ErrJournalClosed
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultJournalLimit
	}

	var out []ports.JournalEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if matches(e, q) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count returns the number of entries for an event name ("" = all).
func (s *JournalStore) Count(ctx context.Context, event string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ports.ErrJournalClosed
	}
	if event == "" {
		return len(s.entries), nil
	}
	n := 0
	for _, e := range s.entries {
		if e.Event == event {
			n++
		}
	}
	return n, nil
}

// Close drops all entries. Later calls fail with ports.ErrJournalClosed.
func (s *JournalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	s.ids = nil
	return nil
}

func matches(e ports.JournalEntry, q ports.JournalQuery) bool {
	if q.Module != "" && e.Module != q.Module {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	return true
}

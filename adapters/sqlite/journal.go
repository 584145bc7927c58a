package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mambaweb/mamba/adapters/idgen"
	"github.com/mambaweb/mamba/ports"
)

const defaultJournalLimit = 100

// JournalStore implements ports.JournalStore using SQLite.
type JournalStore struct {
	db    *sql.DB
	ids   ports.IDGenerator
	clock ports.Clock
}

// JournalOption configures a JournalStore.
type JournalOption func(*JournalStore)

// WithClock overrides the clock used for CreatedAt.
func WithClock(c ports.Clock) JournalOption {
	return func(s *JournalStore) { s.clock = c }
}

// WithIDGenerator overrides the entry ID generator.
func WithIDGenerator(g ports.IDGenerator) JournalOption {
	return func(s *JournalStore) { s.ids = g }
}

// NewJournalStore creates a new SQLite module journal.
func NewJournalStore(db *DB, opts ...JournalOption) *JournalStore {
	s := &JournalStore{
		db:    db.DB,
		ids:   idgen.UUID{},
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure interface compliance.
var _ ports.JournalStore = (*JournalStore)(nil)

// Record stores an entry.
func (s *JournalStore) Record(ctx context.Context, entry ports.JournalEntry) (ports.JournalEntry, error) {
	if entry.ID == "" {
		entry.ID = s.ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module_journal (id, event, module, kind, path, error, reloads, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Event, entry.Module, entry.Kind, entry.Path, entry.Error, entry.Reloads, entry.CreatedAt)
	if err != nil {
		return ports.JournalEntry{}, fmt.Errorf("record %s for %s: %w", entry.Event, entry.Module, err)
	}
	return entry, nil
}

// List returns matching entries, newest first.
func (s *JournalStore) List(ctx context.Context, q ports.JournalQuery) ([]ports.JournalEntry, error) {
	var where []string
	var args []any
	if q.Module != "" {
		where = append(where, "module = ?")
		args = append(args, q.Module)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.Event != "" {
		where = append(where, "event = ?")
		args = append(args, q.Event)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultJournalLimit
	}

	query := `SELECT id, event, module, kind, path, error, reloads, created_at FROM module_journal`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ports.JournalEntry
	for rows.Next() {
		var e ports.JournalEntry
		if err := rows.Scan(
			&e.ID,
			&e.Event,
			&e.Module,
			&e.Kind,
			&e.Path,
			&e.Error,
			&e.Reloads,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries for an event name ("" = all).
func (s *JournalStore) Count(ctx context.Context, event string) (int, error) {
	var n int
	var err error
	if event == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM module_journal`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM module_journal WHERE event = ?`, event).Scan(&n)
	}
	return n, err
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

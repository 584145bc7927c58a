// Package journal records module lifecycle events in a ports.JournalStore.
package journal

import (
	"context"

	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/ports"
	"github.com/rs/zerolog"
)

// Subscribe records every module lifecycle event published on bus.
func Subscribe(bus *events.Bus, store ports.JournalStore, logger zerolog.Logger) {
	bus.Subscribe("module.*", func(ctx context.Context, ev events.Event) error {
		entry, err := store.Record(ctx, EntryFromEvent(ev))
		if err != nil {
			return err
		}
		logger.Debug().
			Str("id", entry.ID).
			Str("event", entry.Event).
			Str("module", entry.Module).
			Msg("journal entry recorded")
		return nil
	})
}

// EntryFromEvent converts a lifecycle event into a journal entry.
func EntryFromEvent(ev events.Event) ports.JournalEntry {
	entry := ports.JournalEntry{
		Event:     ev.Name,
		Module:    ev.Module,
		Kind:      ev.Kind,
		Path:      ev.Path,
		CreatedAt: ev.Time,
	}
	if ev.Err != nil {
		entry.Error = ev.Err.Error()
	}
	if n, ok := ev.Data["reloads"].(int); ok {
		entry.Reloads = n
	}
	return entry
}

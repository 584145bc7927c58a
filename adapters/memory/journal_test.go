package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mambaweb/mamba/adapters/idgen"
	"github.com/mambaweb/mamba/adapters/memory"
	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/ports"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestJournalStore_Record(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewJournalStore(0).
		WithIDGenerator(idgen.NewSequential("entry-")).
		WithClock(fixedClock{t: now})
	ctx := context.Background()

	got, err := store.Record(ctx, ports.JournalEntry{Event: events.ModuleLoaded, Module: "blog"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.ID != "entry-1" || !got.CreatedAt.Equal(now) {
		t.Errorf("entry = %+v", got)
	}

	if _, err := store.Record(ctx, ports.JournalEntry{ID: "entry-1"}); !errors.Is(err, memory.ErrDuplicateID) {
		t.Errorf("duplicate record error = %v, want ErrDuplicateID", err)
	}
}

func TestJournalStore_ListAndCount(t *testing.T) {
	store := memory.NewJournalStore(0).WithIDGenerator(idgen.NewSequential("entry-"))
	ctx := context.Background()

	for _, e := range []ports.JournalEntry{
		{Event: events.ModuleLoaded, Module: "blog", Kind: "mamba-controller"},
		{Event: events.ModuleLoaded, Module: "post", Kind: "mamba-model"},
		{Event: events.ModuleReloadFailed, Module: "blog", Kind: "mamba-controller", Error: "syntax error"},
		{Event: events.ModuleReloaded, Module: "blog", Kind: "mamba-controller", Reloads: 1},
	} {
		if _, err := store.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := store.List(ctx, ports.JournalQuery{})
	if len(all) != 4 || all[0].ID != "entry-4" || all[3].ID != "entry-1" {
		t.Fatalf("all = %+v", all)
	}

	tests := []struct {
		name string
		q    ports.JournalQuery
		want int
	}{
		{"module", ports.JournalQuery{Module: "blog"}, 3},
		{"kind", ports.JournalQuery{Kind: "mamba-model"}, 1},
		{"event", ports.JournalQuery{Event: events.ModuleReloadFailed}, 1},
		{"combined", ports.JournalQuery{Module: "blog", Event: events.ModuleLoaded}, 1},
		{"limit", ports.JournalQuery{Limit: 2}, 2},
		{"no match", ports.JournalQuery{Module: "missing"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	if n, _ := store.Count(ctx, events.ModuleLoaded); n != 2 {
		t.Errorf("Count(loaded) = %d, want 2", n)
	}
	if n, _ := store.Count(ctx, ""); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestJournalStore_CapacityDropsOldest(t *testing.T) {
	store := memory.NewJournalStore(3).WithIDGenerator(idgen.NewSequential("entry-"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, ports.JournalEntry{Event: events.ModuleLoaded, Module: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := store.List(ctx, ports.JournalQuery{})
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Module != "m4" || all[2].Module != "m2" {
		t.Errorf("kept = %s..%s, want m4..m2", all[0].Module, all[2].Module)
	}

	// a dropped ID can be recorded again
	if _, err := store.Record(ctx, ports.JournalEntry{ID: "entry-1"}); err != nil {
		t.Errorf("re-record dropped ID: %v", err)
	}
}

func TestJournalStore_Closed(t *testing.T) {
	store := memory.NewJournalStore(0)
	store.Close()
	ctx := context.Background()

	if _, err := store.Record(ctx, ports.JournalEntry{}); !errors.Is(err, ports.ErrJournalClosed) {
		t.Errorf("Record error = %v", err)
	}
	if _, err := store.List(ctx, ports.JournalQuery{}); !errors.Is(err, ports.ErrJournalClosed) {
		t.Errorf("List error = %v", err)
	}
	if _, err := store.Count(ctx, ""); !errors.Is(err, ports.ErrJournalClosed) {
		t.Errorf("Count error = %v", err)
	}
}

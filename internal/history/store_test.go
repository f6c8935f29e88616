package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// newTestStore opens an in-memory store with the schema applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return store
}

func TestInitIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	device := "02:69:32:f0:c5:1d"

	values := []int{10, 42, 77}
	for _, v := range values {
		if err := store.Record(ctx, device, "position", v); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// A different device and metric must not bleed into the query.
	if err := store.Record(ctx, "aa:aa", "position", 5); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, device, "battery", 90); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := store.Recent(ctx, device, "position", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	// Newest first.
	for i, want := range []int{77, 42, 10} {
		if entries[i].Value != want {
			t.Errorf("entries[%d].Value = %d, want %d", i, entries[i].Value, want)
		}
	}

	limited, err := store.Recent(ctx, device, "position", 1)
	if err != nil {
		t.Fatalf("Recent limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Value != 77 {
		t.Errorf("limited = %+v, want single newest entry", limited)
	}
}

func TestLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Latest(ctx, "aa:aa", "battery")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil before any recording", entry)
	}

	store.Record(ctx, "aa:aa", "battery", 50)
	store.Record(ctx, "aa:aa", "battery", 49)

	entry, err = store.Latest(ctx, "aa:aa", "battery")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if entry == nil || entry.Value != 49 {
		t.Errorf("entry = %+v, want value 49", entry)
	}
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Backdate one row beyond the retention window.
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO telemetry_history (device, metric, value, created_at) VALUES (?, ?, ?, ?)`,
		"aa:aa", "position", 1, time.Now().UTC().Add(-48*time.Hour),
	); err != nil {
		t.Fatalf("backdated insert: %v", err)
	}
	store.Record(ctx, "aa:aa", "position", 2)

	deleted, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := store.Recent(ctx, "aa:aa", "position", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Value != 2 {
		t.Errorf("entries = %+v, want only the fresh row", entries)
	}
}

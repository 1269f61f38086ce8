package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func entryAt(operation, archive, outcome string, at time.Time) Entry {
	return Entry{
		Operation:  operation,
		Archive:    archive,
		Outcome:    outcome,
		StartedAt:  at,
		FinishedAt: at.Add(30 * time.Second),
	}
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	first := entryAt(OpCreate, "photos", OutcomeSuccess, base)
	first.SourcePath = "/data/photos"
	first.Detail = "120 files"
	if _, err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, entryAt(OpVerify, "photos", OutcomeSuccess, base.Add(time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, entryAt(OpCreate, "docs", OutcomeFailure, base.Add(2*time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("entries = %d, want 3", len(all))
	}
	if all[0].Archive != "docs" {
		t.Errorf("newest first: got %q", all[0].Archive)
	}

	photos, err := store.List(ctx, "photos", 0)
	if err != nil {
		t.Fatalf("List(photos): %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("photos entries = %d, want 2", len(photos))
	}
	if photos[1].SourcePath != "/data/photos" || photos[1].Detail != "120 files" {
		t.Errorf("entry = %+v", photos[1])
	}
	if !photos[1].StartedAt.Equal(base) {
		t.Errorf("started_at = %v, want %v", photos[1].StartedAt, base)
	}
	if photos[1].Duration() != 30*time.Second {
		t.Errorf("duration = %v, want 30s", photos[1].Duration())
	}
}

func TestListLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, entryAt(OpVerify, "unit", OutcomeSuccess, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	entries, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestLastVerification(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	none, err := store.LastVerification(ctx, "photos")
	if err != nil {
		t.Fatalf("LastVerification: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for never-verified archive, got %+v", none)
	}

	if _, err := store.Record(ctx, entryAt(OpVerify, "photos", OutcomeFailure, base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, entryAt(OpVerify, "photos", OutcomeSuccess, base.Add(time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, entryAt(OpRepair, "photos", OutcomeSuccess, base.Add(2*time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	last, err := store.LastVerification(ctx, "photos")
	if err != nil {
		t.Fatalf("LastVerification: %v", err)
	}
	if last == nil {
		t.Fatal("expected an entry")
	}
	if last.Outcome != OutcomeSuccess || !last.StartedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("entry = %+v, want the newer verify", last)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), entryAt(OpCreate, "unit", OutcomeSuccess, time.Now().UTC())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1 after reopen", len(entries))
	}
}

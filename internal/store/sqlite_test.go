package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *SQLite {
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteCRUD(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := &Analysis{
		ID:                 "a1",
		VideoName:          "serve.mp4",
		Status:             StatusCompleted,
		Result:             json.RawMessage(`{"analysis":"good contact"}`),
		ExtractedFrames:    map[string]string{"contact_point": "contact_point_0-04.jpg"},
		ProfessionalFrames: map[string]string{"contact_point": "contact_point_federer.jpg"},
	}
	if err := st.Put(ctx, rec); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	got, err := st.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.VideoName != "serve.mp4" || got.Status != StatusCompleted {
		t.Errorf("unexpected record %+v", got)
	}
	if string(got.Result) != `{"analysis":"good contact"}` {
		t.Errorf("unexpected result %s", got.Result)
	}
	if got.ExtractedFrames["contact_point"] != "contact_point_0-04.jpg" {
		t.Errorf("unexpected extracted frames %v", got.ExtractedFrames)
	}
	if got.ProfessionalFrames["contact_point"] != "contact_point_federer.jpg" {
		t.Errorf("unexpected professional frames %v", got.ProfessionalFrames)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps must round trip")
	}

	rec.Status = StatusFailed
	rec.Error = "model overloaded"
	if err := st.Put(ctx, rec); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	got, err = st.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Failed to get after update: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "model overloaded" {
		t.Errorf("update did not stick: %+v", got)
	}

	if _, err := st.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := st.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := st.Delete(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for repeat delete, got %v", err)
	}
}

func TestSQLiteEmptyRecord(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Put(ctx, &Analysis{ID: "bare", Status: StatusProcessing}); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	got, err := st.Get(ctx, "bare")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.Result != nil {
		t.Errorf("expected no result, got %s", got.Result)
	}
	if got.ExtractedFrames != nil || got.ProfessionalFrames != nil {
		t.Errorf("expected nil frame maps, got %v / %v", got.ExtractedFrames, got.ProfessionalFrames)
	}
}

func TestSQLiteListOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, rec := range []*Analysis{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "tie-b", CreatedAt: base.Add(time.Hour)},
		{ID: "tie-a", CreatedAt: base.Add(time.Hour)},
	} {
		if err := st.Put(ctx, rec); err != nil {
			t.Fatalf("Failed to put %s: %v", rec.ID, err)
		}
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	want := []string{"new", "tie-a", "tie-b", "old"}
	if len(list) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestMigrationStatus(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	migrations, applied, err := MigrationStatus(db)
	if err != nil {
		t.Fatalf("Failed to read status: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if len(applied) != 0 {
		t.Errorf("fresh database must have no applied migrations, got %v", applied)
	}

	if err := Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	migrations, applied, err = MigrationStatus(db)
	if err != nil {
		t.Fatalf("Failed to read status after migrate: %v", err)
	}
	for _, m := range migrations {
		if !applied[m.Version] {
			t.Errorf("migration %s not applied", m.Name)
		}
	}

	// Migrate again is a no-op, not a failure.
	if err := Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("Repeat migrate failed: %v", err)
	}
}

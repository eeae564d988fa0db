package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"faturas/internal/dataset"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "history.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	_, path := newTestRepo(t)
	version, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}
}

func TestRecordAndListLoads(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	loadedAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	first := dataset.LoadReport{Source: "files:data/*.xlsx", FilesMatched: 2, FilesRead: 1, RowsRead: 10, RowsKept: 8, RowsDropped: 2,
		Failures: []string{"bad.xlsx: zip: not a valid zip file"}, LoadedAt: loadedAt, Duration: 1500 * time.Millisecond}
	second := dataset.LoadReport{Source: "memory", Error: "no spreadsheet files found", LoadedAt: loadedAt.Add(time.Hour)}

	for _, r := range []dataset.LoadReport{first, second} {
		if err := repo.RecordLoad(ctx, r); err != nil {
			t.Fatalf("record load: %v", err)
		}
	}

	runs, err := repo.RecentLoads(ctx, 10)
	if err != nil {
		t.Fatalf("recent loads: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Report.Source != "memory" || runs[0].Report.Error == "" {
		t.Fatalf("expected newest first, got %+v", runs[0])
	}
	got := runs[1].Report
	if got.RowsKept != 8 || got.RowsDropped != 2 || got.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if len(got.Failures) != 1 || got.Warnings == nil || len(got.Warnings) != 0 {
		t.Fatalf("unexpected lists: failures=%v warnings=%v", got.Failures, got.Warnings)
	}
	if !got.LoadedAt.Equal(loadedAt) {
		t.Fatalf("loaded_at = %v, want %v", got.LoadedAt, loadedAt)
	}

	limited, err := repo.RecentLoads(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit not applied: %d %v", len(limited), err)
	}
}

func TestRecordExport(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	if err := repo.RecordExport(ctx, Export{Query: "status=paid", Rows: 3, Destination: "http"}); err != nil {
		t.Fatalf("record export: %v", err)
	}
	n, err := repo.ExportCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("export count = %d, %v", n, err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

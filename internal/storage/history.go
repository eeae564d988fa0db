// Package storage persists load runs and export audits in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"faturas/internal/dataset"
)

const timeLayout = time.RFC3339Nano

// LoadRun is one recorded dataset load.
type LoadRun struct {
	ID     int64              `json:"id"`
	Report dataset.LoadReport `json:"report"`
}

// Export is one audited CSV export.
type Export struct {
	Query       string
	Rows        int
	Destination string // "http" or a file path
	CreatedAt   time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ dataset.Recorder = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordLoad stores a load report.
func (r *SQLiteRepository) RecordLoad(ctx context.Context, rep dataset.LoadReport) error {
	failures, err := marshalList(rep.Failures)
	if err != nil {
		return err
	}
	warnings, err := marshalList(rep.Warnings)
	if err != nil {
		return err
	}
	_, err = r.queries.InsertLoadRun(ctx, InsertLoadRunParams{
		Source:       rep.Source,
		FilesMatched: int64(rep.FilesMatched),
		FilesRead:    int64(rep.FilesRead),
		RowsRead:     int64(rep.RowsRead),
		RowsKept:     int64(rep.RowsKept),
		RowsDropped:  int64(rep.RowsDropped),
		Failures:     failures,
		Warnings:     warnings,
		Error:        rep.Error,
		LoadedAt:     rep.LoadedAt.UTC().Format(timeLayout),
		DurationMs:   rep.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("insert load run: %w", err)
	}
	return nil
}

// RecentLoads returns up to limit load runs, newest first.
func (r *SQLiteRepository) RecentLoads(ctx context.Context, limit int) ([]LoadRun, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.queries.ListLoadRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list load runs: %w", err)
	}
	out := make([]LoadRun, 0, len(rows))
	for _, row := range rows {
		run := LoadRun{ID: row.ID, Report: dataset.LoadReport{
			Source:       row.Source,
			FilesMatched: int(row.FilesMatched),
			FilesRead:    int(row.FilesRead),
			RowsRead:     int(row.RowsRead),
			RowsKept:     int(row.RowsKept),
			RowsDropped:  int(row.RowsDropped),
			Error:        row.Error,
			Duration:     time.Duration(row.DurationMs) * time.Millisecond,
		}}
		if err := json.Unmarshal([]byte(row.Failures), &run.Report.Failures); err != nil {
			return nil, fmt.Errorf("decode failures of run %d: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.Warnings), &run.Report.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings of run %d: %w", row.ID, err)
		}
		if t, err := time.Parse(timeLayout, row.LoadedAt); err == nil {
			run.Report.LoadedAt = t
		}
		out = append(out, run)
	}
	return out, nil
}

// RecordExport audits a CSV export.
func (r *SQLiteRepository) RecordExport(ctx context.Context, e Export) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.queries.InsertExport(ctx, InsertExportParams{
		Query:       e.Query,
		Rows:        int64(e.Rows),
		Destination: e.Destination,
		CreatedAt:   e.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// ExportCount returns how many exports were audited.
func (r *SQLiteRepository) ExportCount(ctx context.Context) (int, error) {
	n, err := r.queries.CountExports(ctx)
	if err != nil {
		return 0, fmt.Errorf("count exports: %w", err)
	}
	return int(n), nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

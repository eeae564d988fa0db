package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertLoadRun = `
INSERT INTO load_runs (source, files_matched, files_read, rows_read, rows_kept, rows_dropped, failures, warnings, error, loaded_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertLoadRunParams struct {
	Source       string
	FilesMatched int64
	FilesRead    int64
	RowsRead     int64
	RowsKept     int64
	RowsDropped  int64
	Failures     string
	Warnings     string
	Error        string
	LoadedAt     string
	DurationMs   int64
}

func (q *Queries) InsertLoadRun(ctx context.Context, arg InsertLoadRunParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertLoadRun,
		arg.Source, arg.FilesMatched, arg.FilesRead, arg.RowsRead, arg.RowsKept, arg.RowsDropped,
		arg.Failures, arg.Warnings, arg.Error, arg.LoadedAt, arg.DurationMs)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listLoadRuns = `
SELECT id, source, files_matched, files_read, rows_read, rows_kept, rows_dropped, failures, warnings, error, loaded_at, duration_ms
FROM load_runs
ORDER BY id DESC
LIMIT ?
`

type LoadRunRow struct {
	ID           int64
	Source       string
	FilesMatched int64
	FilesRead    int64
	RowsRead     int64
	RowsKept     int64
	RowsDropped  int64
	Failures     string
	Warnings     string
	Error        string
	LoadedAt     string
	DurationMs   int64
}

func (q *Queries) ListLoadRuns(ctx context.Context, limit int64) ([]LoadRunRow, error) {
	rows, err := q.db.QueryContext(ctx, listLoadRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoadRunRow
	for rows.Next() {
		var i LoadRunRow
		if err := rows.Scan(&i.ID, &i.Source, &i.FilesMatched, &i.FilesRead, &i.RowsRead, &i.RowsKept,
			&i.RowsDropped, &i.Failures, &i.Warnings, &i.Error, &i.LoadedAt, &i.DurationMs); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertExport = `
INSERT INTO exports (query, rows, destination, created_at) VALUES (?, ?, ?, ?)
`

type InsertExportParams struct {
	Query       string
	Rows        int64
	Destination string
	CreatedAt   string
}

func (q *Queries) InsertExport(ctx context.Context, arg InsertExportParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertExport, arg.Query, arg.Rows, arg.Destination, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const countExports = `SELECT COUNT(*) FROM exports`

func (q *Queries) CountExports(ctx context.Context) (int64, error) {
	rows, err := q.db.QueryContext(ctx, countExports)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

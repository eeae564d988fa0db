// Package dataset turns raw spreadsheet tables into a normalized invoice
// dataset and keeps the current one cached.
package dataset

import (
	"errors"
	"time"

	"faturas/internal/core"
)

// ErrEmptyDataset is wrapped by every error describing a load that produced
// no usable records.
var ErrEmptyDataset = errors.New("no invoice data available")

// Dataset is the immutable result of one load. Records keep source order.
type Dataset struct {
	Records []core.Invoice
	Clients []string // unique, first-seen order
	MinDate time.Time
	MaxDate time.Time
	Report  LoadReport
}

// LoadReport describes what a load read and what it discarded.
type LoadReport struct {
	Source       string        `json:"source"`
	FilesMatched int           `json:"files_matched"`
	FilesRead    int           `json:"files_read"`
	Failures     []string      `json:"failures,omitempty"`
	RowsRead     int           `json:"rows_read"`
	RowsKept     int           `json:"rows_kept"`
	RowsDropped  int           `json:"rows_dropped"`
	Warnings     []string      `json:"warnings,omitempty"`
	Error        string        `json:"error,omitempty"`
	LoadedAt     time.Time     `json:"loaded_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Empty reports whether the dataset has no records.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Records) == 0
}

// OK reports whether the load produced records.
func (r LoadReport) OK() bool {
	return r.Error == "" && r.RowsKept > 0
}

package sheets

import (
	"context"
	"fmt"
)

// Ports for inbound spreadsheet sources.
type (
	// Table is one worksheet as read from a source: a header row and the
	// data rows below it. Rows may be shorter or longer than Headers.
	Table struct {
		Name    string
		Headers []string
		Rows    [][]string
	}

	// ReadFailure records a single file or range that could not be read.
	ReadFailure struct {
		Name string
		Err  error
	}

	// ReadResult is everything a source produced in one pass.
	ReadResult struct {
		Source   string // human readable description, e.g. "files:./data/*.xlsx"
		Matched  int    // files or ranges discovered
		Tables   []Table
		Failures []ReadFailure
	}

	// TableSource reads every table it is configured for. A failing table is
	// reported in ReadResult.Failures; a returned error means the source as a
	// whole could not be listed or reached.
	TableSource interface {
		ReadTables(ctx context.Context) (ReadResult, error)
	}
)

func (f ReadFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

func (f ReadFailure) Unwrap() error { return f.Err }

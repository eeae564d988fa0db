package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"faturas/internal/core"
	ports "faturas/internal/sheets"
)

var stdHeaders = []string{"Fatura", "Cliente", "Vlr  Fatur", "vencimen", "Liquidada/Atrasada", "Extra"}

func TestBuildNormalizesAndDrops(t *testing.T) {
	res := ports.ReadResult{
		Source:  "memory",
		Matched: 3,
		Tables: []ports.Table{
			{Name: "jan.xlsx", Headers: stdHeaders, Rows: [][]string{
				{"1", "A", "100", "2024-01-05", " liquidado ", "x"},
				{"2", "B", "1.234,50", "45296", "ATRASADO"},
				{"", "C", "10", "2024-01-01", "LIQUIDADO"},   // no id
				{"4", "D", "abc", "2024-01-01", "LIQUIDADO"}, // bad amount
				{"5", "E", "10", "not a date", ""},           // bad date
				{"6", "", "-5", "15/02/2024", ""},            // blank client kept
			}},
			{Name: "feb.xlsx", Headers: []string{"FATURA", "CLIENTE", "VLR FATUR", "VENCIMEN"}, Rows: [][]string{
				{"7", "A", "1", "01/03/2024"},
			}},
		},
		Failures: []ports.ReadFailure{{Name: "bad.xlsx", Err: errors.New("zip: not a valid zip file")}},
	}

	ds := Build(res)
	if got := len(ds.Records); got != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", got, ds.Records)
	}
	r := ds.Report
	if r.RowsRead != 7 || r.RowsDropped != 3 || r.RowsKept != 4 || r.FilesRead != 2 || r.FilesMatched != 3 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if len(r.Failures) != 1 || !strings.Contains(r.Failures[0], "bad.xlsx") {
		t.Fatalf("unexpected failures: %v", r.Failures)
	}
	if len(r.Warnings) != 1 || r.Warnings[0] != "feb.xlsx: missing column LIQUIDADA/ATRASADA" {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
	if r.Error != "" || !r.OK() {
		t.Fatalf("expected a successful report, got %+v", r)
	}

	first := ds.Records[0]
	if first.ID != "1" || first.Status != core.StatusPaid || !first.Amount.Equal(decimal.NewFromInt(100)) || first.Source != "jan.xlsx" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	second := ds.Records[1]
	if !second.Amount.Equal(decimal.RequireFromString("1234.50")) || second.Status != core.StatusOpen {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if !second.DueDate.Equal(core.NewDate(2024, 1, 5)) {
		t.Fatalf("serial 45296 should be 2024-01-05, got %v", second.DueDate)
	}
	if ds.Records[3].Status != core.StatusOpen {
		t.Fatalf("missing status column should map to open")
	}

	wantClients := []string{"A", "B", ""}
	if strings.Join(ds.Clients, "|") != strings.Join(wantClients, "|") {
		t.Fatalf("clients = %q, want %q", ds.Clients, wantClients)
	}
	if !ds.MinDate.Equal(core.NewDate(2024, 1, 5)) || !ds.MaxDate.Equal(core.NewDate(2024, 3, 1)) {
		t.Fatalf("unexpected bounds: %v %v", ds.MinDate, ds.MaxDate)
	}
}

func TestBuildRecordsInvariant(t *testing.T) {
	res := ports.ReadResult{Matched: 1, Tables: []ports.Table{{
		Name:    "t",
		Headers: stdHeaders,
		Rows: [][]string{
			{"1", "A", "1", "2024-01-01"},
			{"  ", "A", "1", "2024-01-01"},
			{"3", "A", "", "2024-01-01"},
			{"4", "A", "1", ""},
			{"5"},
		},
	}}}
	for _, rec := range Build(res).Records {
		if rec.ID == "" || rec.DueDate.IsZero() {
			t.Fatalf("record violates invariant: %+v", rec)
		}
	}
}

func TestBuildEmptyReasons(t *testing.T) {
	cases := []struct {
		name string
		res  ports.ReadResult
		want string
	}{
		{"no files", ports.ReadResult{Source: "files:data/*.xlsx"}, "no spreadsheet files found"},
		{"all failed", ports.ReadResult{Matched: 2, Failures: []ports.ReadFailure{{Name: "a"}, {Name: "b"}}}, "none of the 2 files"},
		{"no rows", ports.ReadResult{Matched: 1, Tables: []ports.Table{{Name: "a", Headers: stdHeaders}}}, "no valid invoice rows"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ds := Build(c.res)
			if !ds.Empty() {
				t.Fatalf("expected empty dataset")
			}
			if !strings.Contains(ds.Report.Error, c.want) {
				t.Fatalf("error %q does not contain %q", ds.Report.Error, c.want)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	if got := NormalizeHeader("  vlr   fatur "); got != "VLR FATUR" {
		t.Fatalf("NormalizeHeader = %q", got)
	}
}

func TestParseDueDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-05", core.NewDate(2024, 1, 5), true},
		{"05/01/2024", core.NewDate(2024, 1, 5), true},
		{"05/01/2024 13:45:00", core.NewDate(2024, 1, 5), true},
		{"2024-01-05T10:00:00Z", core.NewDate(2024, 1, 5), true},
		{"45296", core.NewDate(2024, 1, 5), true},
		{"45296.75", core.NewDate(2024, 1, 5), true},
		{"", time.Time{}, false},
		{"0", time.Time{}, false},
		{"2024", time.Time{}, false},
		{"9999", time.Time{}, false},
		{"10000", core.NewDate(1927, 5, 18), true},
		{"31/02/2024", time.Time{}, false},
		{"soon", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseDueDate(c.in)
		if ok != c.ok || !got.Equal(c.want) {
			t.Errorf("ParseDueDate(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

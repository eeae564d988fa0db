package dataset

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"faturas/internal/core"
	ports "faturas/internal/sheets"
)

// Source column headers, compared after upper-casing.
const (
	ColID      = "FATURA"
	ColClient  = "CLIENTE"
	ColAmount  = "VLR FATUR"
	ColDueDate = "VENCIMEN"
	ColStatus  = "LIQUIDADA/ATRASADA"
)

// Field names after normalization.
const (
	FieldID      = "ID"
	FieldClient  = "Cliente"
	FieldAmount  = "Valor"
	FieldDueDate = "Vencimento"
	FieldStatus  = "Status"
)

// ColumnMapping renames source headers to normalized field names.
var ColumnMapping = map[string]string{
	ColID:      FieldID,
	ColClient:  FieldClient,
	ColAmount:  FieldAmount,
	ColDueDate: FieldDueDate,
	ColStatus:  FieldStatus,
}

// expected columns in the order missing ones are reported.
var expectedColumns = []string{ColID, ColClient, ColAmount, ColDueDate, ColStatus}

var upper = cases.Upper(language.Und)

// NormalizeHeader trims, upper-cases and collapses inner whitespace.
func NormalizeHeader(h string) string {
	return upper.String(strings.Join(strings.Fields(h), " "))
}

// Build concatenates every table in res and normalizes it. Rows without an
// id, a parseable amount or a parseable due date are dropped and counted.
func Build(res ports.ReadResult) *Dataset {
	ds := &Dataset{
		Report: LoadReport{
			Source:       res.Source,
			FilesMatched: res.Matched,
			FilesRead:    len(res.Tables),
		},
	}
	for _, f := range res.Failures {
		ds.Report.Failures = append(ds.Report.Failures, f.Error())
	}

	seenClient := map[string]struct{}{}
	for _, table := range res.Tables {
		index := columnIndex(table.Headers)
		for _, col := range expectedColumns {
			if _, ok := index[ColumnMapping[col]]; !ok {
				ds.Report.Warnings = append(ds.Report.Warnings, fmt.Sprintf("%s: missing column %s", table.Name, col))
			}
		}

		for _, row := range table.Rows {
			ds.Report.RowsRead++
			inv, err := invoiceFromRow(row, index)
			if err != nil {
				ds.Report.RowsDropped++
				continue
			}
			inv.Source = table.Name
			ds.Records = append(ds.Records, inv)

			if _, ok := seenClient[inv.Client]; !ok {
				seenClient[inv.Client] = struct{}{}
				ds.Clients = append(ds.Clients, inv.Client)
			}
			if ds.MinDate.IsZero() || inv.DueDate.Before(ds.MinDate) {
				ds.MinDate = inv.DueDate
			}
			if inv.DueDate.After(ds.MaxDate) {
				ds.MaxDate = inv.DueDate
			}
		}
	}
	ds.Report.RowsKept = len(ds.Records)
	ds.Report.Error = emptyReason(res, ds)
	return ds
}

// columnIndex maps normalized field names to their position. The first
// occurrence of a duplicated header wins.
func columnIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		field, ok := ColumnMapping[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := index[field]; !dup {
			index[field] = i
		}
	}
	return index
}

func cell(row []string, index map[string]int, field string) string {
	i, ok := index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func invoiceFromRow(row []string, index map[string]int) (core.Invoice, error) {
	inv := core.Invoice{
		ID:     cell(row, index, FieldID),
		Client: cell(row, index, FieldClient),
		Status: core.StatusFromRaw(cell(row, index, FieldStatus)),
	}
	amount, err := core.ParseAmount(cell(row, index, FieldAmount))
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Amount = amount

	if due, ok := ParseDueDate(cell(row, index, FieldDueDate)); ok {
		inv.DueDate = due
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

func emptyReason(res ports.ReadResult, ds *Dataset) string {
	switch {
	case res.Matched == 0:
		return fmt.Sprintf("no spreadsheet files found (%s)", res.Source)
	case len(res.Tables) == 0:
		return fmt.Sprintf("none of the %d files could be read", res.Matched)
	case len(ds.Records) == 0:
		return fmt.Sprintf("no valid invoice rows in %d rows read", ds.Report.RowsRead)
	}
	return ""
}

package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"faturas/internal/core"
	"faturas/internal/filter"
)

// ExportFileName is the download name of the CSV export.
const ExportFileName = "faturas.csv"

// ExportHeader is the first CSV line.
var ExportHeader = []string{"ID", "Cliente", "Valor", "Vencimento", "Status"}

// WriteCSV writes records with raw values: plain decimal amounts, ISO dates
// and status labels.
func WriteCSV(w io.Writer, records []core.Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		rec := []string{r.ID, r.Client, r.Amount.String(), r.DueDate.Format(filter.DateLayout), r.Status.String()}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write invoice %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

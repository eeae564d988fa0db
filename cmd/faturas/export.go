package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"faturas/internal/core"
	"faturas/internal/dataset"
	"faturas/internal/filter"
	"faturas/internal/log"
	"faturas/internal/report"
	"faturas/internal/storage"
)

type exportOptions struct {
	out      string
	start    string
	end      string
	statuses []string
	clients  []string
	search   string
}

func exportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered invoices to a CSV file",
		Example: `  faturas export --start 2024-01-01 --end 2024-03-31 --status unpaid
  faturas export --client "ACME LTDA" --out - > acme.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := opts.criteria()
			if err != nil {
				return err
			}
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			store := dataset.NewStore(e.source, dataset.WithLogger(e.logger.WithComponent(log.ComponentDataset)))
			ds, err := store.Dataset(cmd.Context())
			if err != nil {
				return err
			}
			records, effective := report.Select(ds, criteria)

			if err := writeExport(opts.out, cmd.OutOrStdout(), records); err != nil {
				return err
			}
			if e.history != nil {
				exp := storage.Export{Query: effective.Values().Encode(), Rows: len(records), Destination: opts.out, CreatedAt: time.Now()}
				if err := e.history.RecordExport(cmd.Context(), exp); err != nil {
					e.logger.Warn("Failed to record export", log.FieldOperation, log.OpRecord, log.FieldError, err)
				}
			}
			e.logger.Info("Invoices exported", log.FieldOperation, log.OpExport, log.FieldRecords, len(records), log.FieldFile, opts.out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", report.ExportFileName, `output file, "-" for stdout`)
	cmd.Flags().StringVar(&opts.start, "start", "", "first due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.end, "end", "", "last due date, YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&opts.statuses, "status", nil, "status to include: paid or unpaid (repeatable)")
	cmd.Flags().StringArrayVar(&opts.clients, "client", nil, "client to include (repeatable)")
	cmd.Flags().StringVarP(&opts.search, "q", "q", "", "free text search")
	return cmd
}

// criteria validates the flags. Unlike query parameters, bad values are errors.
func (o exportOptions) criteria() (filter.Criteria, error) {
	var c filter.Criteria
	var err error
	if c.Range.Start, err = parseFlagDate("start", o.start); err != nil {
		return c, err
	}
	if c.Range.End, err = parseFlagDate("end", o.end); err != nil {
		return c, err
	}
	for _, raw := range o.statuses {
		s, ok := core.ParseStatus(raw)
		if !ok {
			return c, fmt.Errorf("invalid --status %q: want paid or unpaid", raw)
		}
		c.Statuses = append(c.Statuses, s)
	}
	c.Clients = o.clients
	c.Search = strings.TrimSpace(o.search)
	return c, nil
}

func parseFlagDate(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(filter.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, raw)
	}
	return t, nil
}

func writeExport(path string, stdout io.Writer, records []core.Invoice) error {
	if path == "-" {
		return report.WriteCSV(stdout, records)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

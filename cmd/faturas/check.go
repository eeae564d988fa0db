package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"faturas/internal/dataset"
	"faturas/internal/log"
)

func checkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the configured source and print the load report",
		Long: `check reads the configured source once, prints what was read, dropped and
warned about, and exits non-zero when no invoice could be loaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			opts := []dataset.Option{dataset.WithLogger(e.logger.WithComponent(log.ComponentDataset))}
			if e.history != nil {
				opts = append(opts, dataset.WithRecorder(e.history))
			}
			ds, loadErr := dataset.NewStore(e.source, opts...).Dataset(cmd.Context())

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(ds.Report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), ds.Report)
			}
			return loadErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r dataset.LoadReport) {
	fmt.Fprintf(w, "Source:        %s\n", r.Source)
	fmt.Fprintf(w, "Files:         %d read of %d matched\n", r.FilesRead, r.FilesMatched)
	fmt.Fprintf(w, "Rows:          %d read, %d kept, %d dropped\n", r.RowsRead, r.RowsKept, r.RowsDropped)
	fmt.Fprintf(w, "Duration:      %s\n", r.Duration)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "Failed file:   %s\n", f)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "Warning:       %s\n", warning)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:         %s\n", r.Error)
	}
}

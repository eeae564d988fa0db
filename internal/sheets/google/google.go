// Package google reads invoice tables from Google Sheets ranges.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "faturas/internal/sheets"
)

// Source reads one table per configured A1 range of a spreadsheet.
type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	ranges        []string
}

var _ ports.TableSource = (*Source)(nil)

// Credentials selects the service account used to reach the API. When both
// are empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Credentials struct {
	JSON string
	File string
}

// New creates a Source authenticated with a service account.
func New(ctx context.Context, spreadsheetID string, ranges []string, creds Credentials) (*Source, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, ranges)
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, ranges []string) (*Source, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	var clean []string
	for _, r := range ranges {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("no sheet ranges configured")
	}
	return &Source{svc: svc, spreadsheetID: spreadsheetID, ranges: clean}, nil
}

func (s *Source) String() string {
	return "sheets:" + s.spreadsheetID
}

// newSheetsService initializes a read-only Sheets service from service
// account credentials.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(creds.JSON)
	serviceAccountFile := strings.TrimSpace(creds.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service", "scope", gsheet.SpreadsheetsReadonlyScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ReadTables fetches every range. A failing range is reported and skipped.
// Dates come back as serial numbers so they parse the same way as xlsx cells.
func (s *Source) ReadTables(ctx context.Context) (ports.ReadResult, error) {
	res := ports.ReadResult{Source: s.String(), Matched: len(s.ranges)}
	if s.svc == nil {
		return res, errors.New("sheets service not initialized")
	}

	for _, rng := range s.ranges {
		resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("SERIAL_NUMBER").
			Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			slog.WarnContext(ctx, "Failed to read sheet range", "range", rng, "error", err)
			res.Failures = append(res.Failures, ports.ReadFailure{Name: rng, Err: fmt.Errorf("read %s: %w", rng, err)})
			continue
		}
		res.Tables = append(res.Tables, tableFromValues(rng, resp.Values))
	}
	return res, nil
}

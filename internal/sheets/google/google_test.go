package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestService(t *testing.T, h http.HandlerFunc) *gsheet.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestReadTables(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("valueRenderOption"); got != "UNFORMATTED_VALUE" {
			t.Errorf("valueRenderOption = %q", got)
		}
		if got := r.URL.Query().Get("dateTimeRenderOption"); got != "SERIAL_NUMBER" {
			t.Errorf("dateTimeRenderOption = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "Broken") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"range":"Jan!A:E","majorDimension":"ROWS","values":[
			["FATURA","CLIENTE","VLR FATUR","VENCIMEN","LIQUIDADA/ATRASADA"],
			[],
			[101,"Acme",1234.5,45296,"LIQUIDADO"]
		]}`))
	})

	src, err := NewWithService(svc, "sheet-id", []string{"Jan!A:E", " ", "Broken!A:E"})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	res, err := src.ReadTables(context.Background())
	if err != nil {
		t.Fatalf("read tables: %v", err)
	}
	if res.Matched != 2 {
		t.Fatalf("expected 2 ranges, got %d", res.Matched)
	}
	if len(res.Failures) != 1 || res.Failures[0].Name != "Broken!A:E" {
		t.Fatalf("expected one failure for Broken!A:E, got %v", res.Failures)
	}
	if len(res.Tables) != 1 {
		t.Fatalf("expected one table, got %d", len(res.Tables))
	}
	table := res.Tables[0]
	if table.Headers[2] != "VLR FATUR" || len(table.Rows) != 1 {
		t.Fatalf("unexpected table: %+v", table)
	}
	row := table.Rows[0]
	if row[0] != "101" || row[2] != "1234.5" || row[3] != "45296" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestNewWithServiceValidation(t *testing.T) {
	if _, err := NewWithService(nil, "", []string{"A"}); err == nil {
		t.Fatalf("expected missing id error")
	}
	if _, err := NewWithService(nil, "id", []string{" "}); err == nil {
		t.Fatalf("expected missing ranges error")
	}
}

func TestNewSheetsServiceMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := newSheetsService(context.Background(), Credentials{}); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if _, err := newSheetsService(context.Background(), Credentials{File: "/nonexistent/sa.json"}); err == nil {
		t.Fatalf("expected error for unreadable credentials file")
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{float64(45296), "45296"},
		{1234.5, "1234.5"},
		{" Acme ", "Acme"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := cellString(c.in); got != c.want {
			t.Errorf("cellString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

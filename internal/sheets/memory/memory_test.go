package memory

import (
	"context"
	"errors"
	"testing"

	ports "faturas/internal/sheets"
)

func TestSourceReturnsCopies(t *testing.T) {
	s := New(ports.Table{Name: "a", Headers: []string{"FATURA"}, Rows: [][]string{{"1"}}})
	res, err := s.ReadTables(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	res.Tables[0].Rows[0][0] = "changed"

	again, _ := s.ReadTables(context.Background())
	if again.Tables[0].Rows[0][0] != "1" {
		t.Fatalf("source tables were mutated through a result")
	}
	if s.Reads() != 2 {
		t.Fatalf("expected 2 reads, got %d", s.Reads())
	}
}

func TestSourceFail(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.Fail(boom)
	if _, err := s.ReadTables(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	s.Fail(nil)
	if _, err := s.ReadTables(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDemo(t *testing.T) {
	res, err := Demo().ReadTables(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(res.Tables) != 1 || len(res.Tables[0].Rows) != 120 {
		t.Fatalf("unexpected demo data: %+v", res)
	}
	for _, row := range res.Tables[0].Rows {
		if len(row) != len(res.Tables[0].Headers) {
			t.Fatalf("row width mismatch: %v", row)
		}
	}
}

package memory

import (
	"context"
	"fmt"
	"sync"

	ports "faturas/internal/sheets"
)

// Source serves fixed tables. It is used by tests and the demo mode.
type Source struct {
	mu     sync.Mutex
	tables []ports.Table
	err    error
	reads  int
}

var _ ports.TableSource = (*Source)(nil)

func New(tables ...ports.Table) *Source {
	return &Source{tables: tables}
}

// Set replaces the tables returned by the next read.
func (s *Source) Set(tables ...ports.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
}

// Fail makes subsequent reads return err. A nil err clears it.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads reports how many times ReadTables was called.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Source) ReadTables(ctx context.Context) (ports.ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	res := ports.ReadResult{Source: "memory", Matched: len(s.tables)}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if s.err != nil {
		return res, s.err
	}
	res.Tables = make([]ports.Table, len(s.tables))
	for i, t := range s.tables {
		rows := make([][]string, len(t.Rows))
		for j, r := range t.Rows {
			rows[j] = append([]string(nil), r...)
		}
		res.Tables[i] = ports.Table{Name: t.Name, Headers: append([]string(nil), t.Headers...), Rows: rows}
	}
	return res, nil
}

// Demo returns a deterministic year of invoices spread over a few clients.
func Demo() *Source {
	headers := []string{"FATURA", "CLIENTE", "VLR FATUR", "VENCIMEN", "LIQUIDADA/ATRASADA"}
	clients := []string{"Padaria Central", "Auto Peças Silva", "Mercado Bom Preço", "Clínica Vida", "Construtora Horizonte"}

	var rows [][]string
	for i := 0; i < 120; i++ {
		month := i%12 + 1
		day := (i*7)%28 + 1
		cents := 15000 + (i*3719)%480000
		status := "LIQUIDADO"
		if i%3 == 0 {
			status = "ATRASADO"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%05d", 1000+i),
			clients[i%len(clients)],
			fmt.Sprintf("%d,%02d", cents/100, cents%100),
			fmt.Sprintf("%02d/%02d/2024", day, month),
			status,
		})
	}
	return New(ports.Table{Name: "demo.xlsx", Headers: headers, Rows: rows})
}

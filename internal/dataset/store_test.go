package dataset

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"faturas/internal/log"
	ports "faturas/internal/sheets"
	"faturas/internal/sheets/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Component: log.ComponentDataset, Output: &bytes.Buffer{}})
}

func sampleTable() ports.Table {
	return ports.Table{
		Name:    "jan.xlsx",
		Headers: []string{"FATURA", "CLIENTE", "VLR FATUR", "VENCIMEN", "LIQUIDADA/ATRASADA"},
		Rows: [][]string{
			{"1", "A", "100", "2024-01-05", "ATRASADO"},
			{"2", "B", "200", "2024-01-20", "LIQUIDADO"},
		},
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	reports []LoadReport
	err     error
}

func (f *fakeRecorder) RecordLoad(_ context.Context, r LoadReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

type fakeNotifier struct{ calls atomic.Int32 }

func (f *fakeNotifier) PublishReloaded(context.Context, LoadReport) error {
	f.calls.Add(1)
	return errors.New("broker down")
}

func TestStoreCachesUntilReload(t *testing.T) {
	src := memory.New(sampleTable())
	rec := &fakeRecorder{}
	var loads int
	s := NewStore(src, WithLogger(quietLogger()), WithRecorder(rec), OnLoad(func(*Dataset) { loads++ }))

	ds, err := s.Dataset(context.Background())
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if len(ds.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(ds.Records))
	}
	again, _ := s.Dataset(context.Background())
	if again != ds || src.Reads() != 1 {
		t.Fatalf("expected cached dataset, reads=%d", src.Reads())
	}

	src.Set()
	reloaded, err := s.Reload(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	if !reloaded.Empty() || src.Reads() != 2 {
		t.Fatalf("expected empty reload, reads=%d", src.Reads())
	}
	// The empty result is cached too.
	if _, err := s.Dataset(context.Background()); !errors.Is(err, ErrEmptyDataset) || src.Reads() != 2 {
		t.Fatalf("expected cached empty result, err=%v reads=%d", err, src.Reads())
	}
	if len(rec.reports) != 2 || loads != 2 {
		t.Fatalf("expected 2 recorded loads, got %d reports %d listener calls", len(rec.reports), loads)
	}
}

func TestStoreInvalidate(t *testing.T) {
	src := memory.New(sampleTable())
	s := NewStore(src, WithLogger(quietLogger()))
	if _, loaded := s.Status(); loaded {
		t.Fatalf("store should start unloaded")
	}
	if _, err := s.Dataset(context.Background()); err != nil {
		t.Fatalf("dataset: %v", err)
	}
	report, loaded := s.Status()
	if !loaded || report.RowsKept != 2 {
		t.Fatalf("unexpected status: %+v %v", report, loaded)
	}
	s.Invalidate()
	if _, loaded := s.Status(); loaded {
		t.Fatalf("expected unloaded after Invalidate")
	}
	if _, err := s.Dataset(context.Background()); err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if src.Reads() != 2 {
		t.Fatalf("expected reload after invalidate, reads=%d", src.Reads())
	}
}

func TestStoreSourceError(t *testing.T) {
	src := memory.New()
	boom := errors.New("permission denied")
	src.Fail(boom)
	s := NewStore(src, WithLogger(quietLogger()))

	ds, err := s.Dataset(context.Background())
	if !errors.Is(err, ErrEmptyDataset) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped empty and source errors, got %v", err)
	}
	if ds == nil || !ds.Empty() || ds.Report.Error != boom.Error() {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
}

func TestStoreSideChannelFailuresDoNotFailLoad(t *testing.T) {
	n := &fakeNotifier{}
	rec := &fakeRecorder{err: errors.New("disk full")}
	s := NewStore(memory.New(sampleTable()), WithLogger(quietLogger()), WithNotifier(n), WithRecorder(rec))
	if _, err := s.Dataset(context.Background()); err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if n.calls.Load() != 1 {
		t.Fatalf("expected one publish, got %d", n.calls.Load())
	}
}

type slowSource struct {
	reads atomic.Int32
	delay time.Duration
}

func (s *slowSource) ReadTables(context.Context) (ports.ReadResult, error) {
	s.reads.Add(1)
	time.Sleep(s.delay)
	return ports.ReadResult{Source: "slow", Matched: 1, Tables: []ports.Table{sampleTable()}}, nil
}

func TestStoreCoalescesConcurrentLoads(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond}
	s := NewStore(src, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Dataset(context.Background()); err != nil {
				t.Errorf("dataset: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := src.reads.Load(); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
}

func TestStoreCancelledCallerDoesNotPoisonLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore(memory.New(sampleTable()), WithLogger(quietLogger()))
	if _, err := s.Dataset(ctx); err != nil {
		t.Fatalf("load should ignore caller cancellation, got %v", err)
	}
}

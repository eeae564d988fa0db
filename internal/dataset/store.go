package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"faturas/internal/log"
	ports "faturas/internal/sheets"
)

// Recorder persists load reports, e.g. to the history database.
type Recorder interface {
	RecordLoad(ctx context.Context, r LoadReport) error
}

// Notifier announces that a new dataset is available.
type Notifier interface {
	PublishReloaded(ctx context.Context, r LoadReport) error
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// OnLoad registers a callback run after every completed load, after the new
// dataset is visible to readers.
func OnLoad(fn func(*Dataset)) Option {
	return func(s *Store) { s.listeners = append(s.listeners, fn) }
}

// Store caches the dataset built from a TableSource. The cached value is
// shared read-only; a load replaces it atomically.
type Store struct {
	source    ports.TableSource
	logger    *log.Logger
	recorder  Recorder
	notifier  Notifier
	listeners []func(*Dataset)
	now       func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *Dataset
	err     error
}

func NewStore(source ports.TableSource, opts ...Option) *Store {
	s := &Store{source: source, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentDataset)
	}
	return s
}

// Dataset returns the cached dataset, loading it on first use. Concurrent
// callers share a single load. An empty dataset is returned together with an
// error wrapping ErrEmptyDataset; it stays cached like any other result.
func (s *Store) Dataset(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	ds, err := s.current, s.err
	s.mu.RUnlock()
	if ds != nil {
		return ds, err
	}
	return s.load(ctx, false)
}

// Reload forces a new load and swaps the cache.
func (s *Store) Reload(ctx context.Context) (*Dataset, error) {
	return s.load(ctx, true)
}

// Invalidate drops the cached dataset; the next Dataset call reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.current, s.err = nil, nil
	s.mu.Unlock()
	s.logger.Info("Dataset cache invalidated")
}

// Status returns the report of the cached load without triggering one.
// loaded is false before the first load completes or after Invalidate.
func (s *Store) Status() (report LoadReport, loaded bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return LoadReport{}, false
	}
	return s.current.Report, true
}

type loadResult struct {
	ds  *Dataset
	err error
}

func (s *Store) load(ctx context.Context, force bool) (*Dataset, error) {
	// The load outlives a single caller; cancelling one request must not
	// fail the others waiting on it.
	loadCtx := context.WithoutCancel(ctx)
	v, _, _ := s.group.Do("load", func() (interface{}, error) {
		if !force {
			s.mu.RLock()
			ds, err := s.current, s.err
			s.mu.RUnlock()
			if ds != nil {
				return loadResult{ds, err}, nil
			}
		}
		ds, err := s.build(loadCtx)
		s.mu.Lock()
		s.current, s.err = ds, err
		s.mu.Unlock()
		s.afterLoad(loadCtx, ds)
		return loadResult{ds, err}, nil
	})
	r := v.(loadResult)
	return r.ds, r.err
}

func (s *Store) build(ctx context.Context) (*Dataset, error) {
	start := s.now()
	res, readErr := s.source.ReadTables(ctx)

	ds := Build(res)
	if readErr != nil {
		ds = &Dataset{Report: LoadReport{Source: res.Source, FilesMatched: res.Matched, Error: readErr.Error()}}
	}
	ds.Report.LoadedAt = start
	ds.Report.Duration = s.now().Sub(start)

	r := ds.Report
	s.logger.InfoContext(ctx, "Dataset loaded",
		log.FieldSource, r.Source,
		log.FieldFiles, r.FilesRead,
		log.FieldRows, r.RowsRead,
		log.FieldRecords, r.RowsKept,
		log.FieldDropped, r.RowsDropped,
		log.FieldWarnings, len(r.Warnings),
		log.FieldDuration, r.Duration.Milliseconds())
	for _, w := range r.Warnings {
		s.logger.WarnContext(ctx, "Schema warning", "warning", w)
	}

	if readErr != nil {
		s.logger.ErrorContext(ctx, "Failed to read source", log.FieldError, readErr)
		return ds, fmt.Errorf("%w: %w", ErrEmptyDataset, readErr)
	}
	if ds.Empty() {
		s.logger.WarnContext(ctx, "Dataset is empty", "reason", r.Error)
		return ds, fmt.Errorf("%w: %s", ErrEmptyDataset, r.Error)
	}
	return ds, nil
}

// afterLoad runs the side channels. Their failures never fail the load.
func (s *Store) afterLoad(ctx context.Context, ds *Dataset) {
	if s.recorder != nil {
		if err := s.recorder.RecordLoad(ctx, ds.Report); err != nil {
			s.logger.WarnContext(ctx, "Failed to record load run", log.FieldOperation, log.OpRecord, log.FieldError, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.PublishReloaded(ctx, ds.Report); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish reload event", log.FieldOperation, log.OpPublish, log.FieldError, err)
		}
	}
	for _, fn := range s.listeners {
		fn(ds)
	}
}

// Package history records every search run, successful or failed.
package history

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/pkg/storage"
)

var runsBucket = []byte("runs")

// Status is the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Run is the persisted summary of one search.
type Run struct {
	Started    time.Time     `json:"started"`
	Finished   time.Time     `json:"finished"`
	ID         string        `json:"id"`
	Backend    string        `json:"backend"`
	Pattern    string        `json:"pattern"`
	Output     string        `json:"output,omitempty"`
	Status     Status        `json:"status"`
	Stage      string        `json:"stage,omitempty"` // failing stage
	Error      string        `json:"error,omitempty"`
	Workers    int           `json:"workers"`
	Records    int           `json:"records"`
	Matches    int           `json:"matches"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
	IgnoreCase bool          `json:"ignore_case"`
}

// Store persists runs.
type Store interface {
	SaveRun(run *Run) error
	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(limit int) ([]*Run, error)
	Close() error
}

// Options configures a RunStore.
type Options struct {
	Logger *zap.Logger
	Keep   int // runs retained; older ones are trimmed on save. 0 keeps everything.
}

// RunStore implements Store on a storage.Backend.
type RunStore struct {
	store  *storage.JSONStore
	logger *zap.Logger
	keep   int
}

// NewRunStore creates a run store on backend.
func NewRunStore(backend storage.Backend, opts Options) (*RunStore, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := backend.CreateBucket(runsBucket); err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &RunStore{
		store:  storage.NewJSONStore(backend),
		logger: opts.Logger.Named("history"),
		keep:   opts.Keep,
	}, nil
}

// NewBboltStore opens a bbolt-backed run store at dbPath.
func NewBboltStore(dbPath string, opts Options) (*RunStore, error) {
	backend, err := storage.NewBboltBackend(dbPath)
	if err != nil {
		return nil, err
	}

	s, err := NewRunStore(backend, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s.logger.Debug("history opened", zap.String("path", dbPath))

	return s, nil
}

// NewNoOpStore creates a store that lives only as long as the process.
func NewNoOpStore() *RunStore {
	s, _ := NewRunStore(storage.NewMemoryBackend(), Options{}) // memory backend cannot fail
	return s
}

// SaveRun appends run and trims history to the retention limit.
func (s *RunStore) SaveRun(run *Run) error {
	if _, err := s.store.AppendJSON(runsBucket, run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	removed, err := storage.Trim(s.store.Backend(), runsBucket, s.keep)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("history trimmed", zap.Int("removed", removed))
	}

	return nil
}

// ListRuns implements Store. Entries that no longer decode are skipped.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	var runs []*Run

	err := storage.ForEachJSON(s.store, runsBucket, func(_ []byte, run Run) error {
		runs = append(runs, &run)
		return nil
	}, func(k []byte, err error) error {
		s.logger.Warn("skipping corrupted run", zap.ByteString("key", k), zap.Error(err))
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// Close closes the underlying backend.
func (s *RunStore) Close() error {
	return s.store.Close()
}

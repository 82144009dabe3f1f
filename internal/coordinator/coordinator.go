// Package coordinator runs one search end to end: it builds the record set,
// partitions it, dispatches the chunks through a transport, waits for every
// worker, aggregates the partials and reports the result.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/internal/history"
	"pkg.jsn.cam/partsearch/internal/sink"
	"pkg.jsn.cam/partsearch/internal/transport"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// ErrAlreadyRun is returned when Run is called on a used coordinator.
var ErrAlreadyRun = errors.New("coordinator already ran")

// Request describes one search.
type Request struct {
	Source     partsearch.Source
	Pattern    string
	IgnoreCase bool
}

// Config holds coordinator configuration
type Config struct {
	Transport transport.Transport
	Sink      sink.Sink     // nil skips persisting the matches
	History   history.Store // nil skips run history
	Logger    *zap.Logger
}

// Report is the outcome of a successful run.
type Report struct {
	Result     *partsearch.Result
	RunID      string
	Backend    string
	Pattern    string
	Output     string
	Load       partsearch.LoadStats
	Workers    int
	IgnoreCase bool
}

// Coordinator drives a single search through its stages.
type Coordinator struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
	state  State
	mu     sync.RWMutex
}

// New creates a coordinator for one run over cfg.Transport.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("coordinator: no transport")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger.Named("coordinator"),
		now:    time.Now,
		state:  StateInit,
	}, nil
}

// State returns the current stage.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Coordinator) enter(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()

	c.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(s)))
}

// Run executes req. On failure the returned error is a *StageError naming
// the failing stage, nothing is written to the sink and the transport is
// closed. Every run, successful or not, is recorded in history.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Report, error) {
	if c.State() != StateInit {
		return nil, ErrAlreadyRun
	}

	run := &history.Run{
		ID:         uuid.New().String(),
		Started:    c.now(),
		Backend:    c.cfg.Transport.Name(),
		Pattern:    req.Pattern,
		IgnoreCase: req.IgnoreCase,
	}
	logger := c.logger.With(zap.String("run", run.ID), zap.String("backend", run.Backend))

	report, err := c.run(ctx, req, run, logger)

	if closeErr := c.cfg.Transport.Close(); closeErr != nil {
		logger.Warn("failed to close transport", zap.Error(closeErr))
	}

	run.Finished = c.now()
	if err != nil {
		c.enter(StateFailed)

		run.Status = history.StatusFailed
		run.Error = err.Error()
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			run.Stage = string(stageErr.Stage)
			run.Error = stageErr.Err.Error()
		}
		logger.Error("search failed", zap.String("stage", run.Stage), zap.Error(err))
	} else {
		c.enter(StateDone)

		run.Status = history.StatusDone
		logger.Info("search completed",
			zap.Int("records", report.Result.Total),
			zap.Int("matches", report.Result.MatchCount),
			zap.Duration("elapsed", report.Result.Elapsed))
	}

	c.record(run, logger)

	if err != nil {
		return nil, err
	}
	return report, nil
}

func (c *Coordinator) run(ctx context.Context, req Request, run *history.Run, logger *zap.Logger) (*Report, error) {
	fail := func(err error) error {
		return &StageError{Stage: c.State(), Err: err}
	}
	// stage moves to s unless the run has been abandoned
	stage := func(s State) error {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		c.enter(s)
		return nil
	}

	// INIT
	pattern, err := partsearch.NewPattern(req.Pattern)
	if err != nil {
		return nil, fail(err)
	}
	if req.Source == nil {
		return nil, fail(fmt.Errorf("%w: no record source", partsearch.ErrSourceUnreadable))
	}
	matcher := partsearch.Matcher{IgnoreCase: req.IgnoreCase}

	if err := stage(StateBuildRecordSet); err != nil {
		return nil, err
	}
	set, stats, err := req.Source.Load(ctx)
	if err != nil {
		return nil, fail(err)
	}
	run.Records = set.Len()
	run.Skipped = stats.Skipped
	if stats.Skipped > 0 {
		logger.Warn("skipped malformed lines", zap.Int("skipped", stats.Skipped))
	}
	logger.Debug("record set built",
		zap.Int("records", set.Len()),
		zap.Int("lines", stats.Lines),
		zap.Int("truncated", stats.Truncated))

	if err := stage(StatePartition); err != nil {
		return nil, err
	}
	chunks, err := partsearch.Partition(set.Len(), c.cfg.Transport.Workers(set.Len()))
	if err != nil {
		return nil, fail(err)
	}
	run.Workers = len(chunks)
	logger.Debug("partitioned", zap.Int("workers", len(chunks)), zap.Int("chunk_size", partsearch.ChunkSize(set.Len(), len(chunks))))

	if err := stage(StateDispatch); err != nil {
		return nil, err
	}
	agg := partsearch.NewAggregator(set, chunks)
	agg.Start(c.now())
	job := &transport.Job{
		RunID:   run.ID,
		Set:     set,
		Pattern: pattern,
		Matcher: matcher,
		Chunks:  chunks,
	}
	if err := c.cfg.Transport.Deliver(ctx, job); err != nil {
		return nil, fail(err)
	}
	if err := c.cfg.Transport.Launch(ctx); err != nil {
		return nil, fail(err)
	}

	if err := stage(StateAwaitAll); err != nil {
		return nil, err
	}
	partials := make([]*partsearch.Partial, 0, len(chunks))
	for k := range chunks {
		p, err := c.cfg.Transport.Collect(ctx, k)
		if err != nil {
			return nil, fail(err)
		}
		logger.Info("worker done",
			zap.Int("worker", k),
			zap.Stringer("chunk", p.Chunk),
			zap.Int("matches", p.MatchCount()),
			zap.Duration("elapsed", p.Elapsed))
		partials = append(partials, p)
	}

	if err := stage(StateAggregate); err != nil {
		return nil, err
	}
	for _, p := range partials {
		if err := agg.Add(p); err != nil {
			return nil, fail(err)
		}
	}
	result, err := agg.Finish()
	if err != nil {
		return nil, fail(err)
	}
	run.Matches = result.MatchCount
	run.Elapsed = result.Elapsed

	if err := stage(StateReport); err != nil {
		return nil, err
	}
	report := &Report{
		Result:     result,
		RunID:      run.ID,
		Backend:    run.Backend,
		Pattern:    req.Pattern,
		Load:       stats,
		Workers:    len(chunks),
		IgnoreCase: req.IgnoreCase,
	}
	if c.cfg.Sink != nil {
		if err := c.cfg.Sink.Write(ctx, result.Matches); err != nil {
			return nil, fail(err)
		}
		report.Output = c.cfg.Sink.Location()
		run.Output = report.Output
	}

	return report, nil
}

func (c *Coordinator) record(run *history.Run, logger *zap.Logger) {
	if c.cfg.History == nil {
		return
	}
	if err := c.cfg.History.SaveRun(run); err != nil {
		logger.Warn("failed to save run history", zap.Error(err))
	}
}

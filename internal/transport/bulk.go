package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/internal/lanes"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// Bulk runs the search on a lanes device. Each worker is one block; lane
// t of block k tests record Chunks[k].Start+t. The record block, pattern
// and chunk table are copied to the device once, and the flag vector is
// copied back once after the launch barrier.
type Bulk struct {
	dev     *lanes.Device
	logger  *zap.Logger
	job     *Job
	records *lanes.Buffer[byte]
	pattern *lanes.Buffer[byte]
	table   *lanes.Buffer[partsearch.Chunk]
	flags   *lanes.Buffer[bool]
	host    []bool
	done    time.Time
	elapsed time.Duration
	threads int
}

// BulkOptions configures a Bulk transport.
type BulkOptions struct {
	Logger  *zap.Logger
	Threads int // lanes per block, 0 means the device maximum
}

// NewBulk creates a bulk transport on dev.
func NewBulk(dev *lanes.Device, opts BulkOptions) *Bulk {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Threads == 0 {
		opts.Threads = dev.MaxThreads()
	}

	return &Bulk{
		dev:     dev,
		logger:  opts.Logger.Named("transport.bulk"),
		threads: opts.Threads,
	}
}

// Name implements Transport.
func (b *Bulk) Name() string { return "lanes" }

// Workers implements Transport: one block per Threads records, at least one.
func (b *Bulk) Workers(n int) int {
	return lanes.BlocksFor(n, b.threads)
}

func (b *Bulk) dim() lanes.Dim {
	return lanes.Dim{Blocks: len(b.job.Chunks), Threads: b.threads}
}

// Deliver copies the whole record set, the pattern and the chunk table to the device.
func (b *Bulk) Deliver(_ context.Context, job *Job) error {
	if err := checkJob(job, b.Workers); err != nil {
		return err
	}
	b.job = job

	if err := b.dev.Validate(b.dim()); err != nil {
		return fmt.Errorf("%w: %w", partsearch.ErrLaunchFailed, err)
	}
	for k, c := range job.Chunks {
		if c.Len() > b.threads {
			return fmt.Errorf("%w: worker %d chunk %s exceeds %d lanes", partsearch.ErrLaunchFailed, k, c, b.threads)
		}
	}

	var err error
	if b.records, err = lanes.CopyIn(b.dev, job.Set.Bytes()); err != nil {
		return fmt.Errorf("%w: copy records: %w", partsearch.ErrLaunchFailed, err)
	}
	if b.pattern, err = lanes.CopyIn(b.dev, job.Pattern.Bytes()); err != nil {
		return fmt.Errorf("%w: copy pattern: %w", partsearch.ErrLaunchFailed, err)
	}
	if b.table, err = lanes.CopyIn(b.dev, job.Chunks); err != nil {
		return fmt.Errorf("%w: copy chunk table: %w", partsearch.ErrLaunchFailed, err)
	}
	if b.flags, err = lanes.Alloc[bool](b.dev, job.Set.Len()); err != nil {
		return fmt.Errorf("%w: alloc flags: %w", partsearch.ErrLaunchFailed, err)
	}

	b.logger.Debug("delivered",
		zap.String("run_id", job.RunID),
		zap.Int("records", job.Set.Len()),
		zap.Int("blocks", len(job.Chunks)),
		zap.Int("threads", b.threads))

	return nil
}

// Launch runs the match kernel and copies the flags back to the host.
func (b *Bulk) Launch(ctx context.Context) error {
	if b.job == nil || b.flags == nil {
		return fmt.Errorf("%w: launch before deliver", partsearch.ErrLaunchFailed)
	}

	records := b.records.Device()
	pattern := b.pattern.Device()
	table := b.table.Device()
	flags := b.flags.Device()
	matcher := b.job.Matcher

	start := time.Now()
	err := b.dev.Launch(ctx, b.dim(), func(l lanes.Lane) {
		c := table[l.Block]
		if l.Thread >= c.Len() {
			return
		}
		i := c.Start + l.Thread
		off := i * partsearch.RecordSize
		flags[i] = matcher.MatchFields(
			records[off:off+partsearch.FieldCapacity],
			records[off+partsearch.FieldCapacity:off+partsearch.RecordSize],
			pattern,
		)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", partsearch.ErrLaunchFailed, err)
	}

	b.host = make([]bool, b.flags.Len())
	if err := b.flags.CopyOut(b.host); err != nil {
		return fmt.Errorf("%w: copy flags: %w", partsearch.ErrLaunchFailed, err)
	}
	b.done = time.Now()
	b.elapsed = b.done.Sub(start)

	b.logger.Debug("kernel finished",
		zap.String("run_id", b.job.RunID),
		zap.Duration("elapsed", b.elapsed))

	return nil
}

// Collect slices worker k's flags out of the copied-back vector.
func (b *Bulk) Collect(_ context.Context, workerID int) (*partsearch.Partial, error) {
	if err := checkWorker(b.job, workerID); err != nil {
		return nil, err
	}
	if b.host == nil {
		return nil, fmt.Errorf("%w: collect before launch", partsearch.ErrTransport)
	}

	c := b.job.Chunks[workerID]
	hits := make(partsearch.ResultVector, c.Len())
	copy(hits, b.host[c.Start:c.End])

	return &partsearch.Partial{
		ReceivedAt: b.done,
		Hits:       hits,
		WorkerID:   workerID,
		Chunk:      c,
		Elapsed:    b.elapsed,
	}, nil
}

// Close frees the device buffers. The device itself stays open.
func (b *Bulk) Close() error {
	b.records.Free()
	b.pattern.Free()
	b.table.Free()
	b.flags.Free()
	b.records, b.pattern, b.table, b.flags = nil, nil, nil, nil
	b.host = nil

	return nil
}

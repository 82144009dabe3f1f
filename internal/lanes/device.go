// Package lanes emulates a data-parallel device on the CPU.
//
// A kernel is launched over a one-dimensional grid of blocks, each holding
// a fixed number of lanes. Lanes of a block run in order on one scheduler
// goroutine; blocks are spread over up to NumCPU schedulers. Lanes share
// nothing but device buffers, and the only synchronization point is the
// barrier at the end of Launch.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxThreadsPerBlock is the default upper bound on lanes per block.
const MaxThreadsPerBlock = 1024

var (
	ErrInvalidLaunch = errors.New("invalid launch configuration")
	ErrKernelPanic   = errors.New("kernel panicked")
	ErrDeviceClosed  = errors.New("device closed")
	ErrBufferFreed   = errors.New("buffer already freed")
	ErrBufferSize    = errors.New("buffer size mismatch")
)

// Dim is a one-dimensional launch configuration.
type Dim struct {
	Blocks  int
	Threads int // lanes per block
}

// Lanes returns the total number of lanes in the grid.
func (d Dim) Lanes() int {
	return d.Blocks * d.Threads
}

// BlocksFor returns the number of blocks of the given width needed for n lanes, at least one.
func BlocksFor(n, threads int) int {
	if threads < 1 {
		return 1
	}
	return max(1, (n+threads-1)/threads)
}

// Lane identifies one lane by its scheduling coordinates.
type Lane struct {
	Block    int
	Thread   int
	BlockDim int
	GridDim  int
}

// Global returns the lane's flat index in the grid.
func (l Lane) Global() int {
	return l.Block*l.BlockDim + l.Thread
}

// Kernel is the per-lane function. It must only write memory owned by its lane.
type Kernel func(l Lane)

// Options configures a Device.
type Options struct {
	Logger             *zap.Logger
	MaxThreadsPerBlock int // 0 means MaxThreadsPerBlock
	Schedulers         int // 0 means runtime.NumCPU()
}

// Device owns the schedulers that execute kernels and tracks live buffers.
type Device struct {
	logger     *zap.Logger
	live       atomic.Int64
	maxThreads int
	schedulers int
	mu         sync.RWMutex
	closed     bool
}

// NewDevice creates a device.
func NewDevice(opts Options) *Device {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxThreadsPerBlock <= 0 {
		opts.MaxThreadsPerBlock = MaxThreadsPerBlock
	}
	if opts.Schedulers <= 0 {
		opts.Schedulers = runtime.NumCPU()
	}

	return &Device{
		logger:     opts.Logger.Named("lanes"),
		maxThreads: opts.MaxThreadsPerBlock,
		schedulers: opts.Schedulers,
	}
}

// MaxThreads returns the largest block width the device accepts.
func (d *Device) MaxThreads() int {
	return d.maxThreads
}

// LiveBuffers returns the number of allocated, not yet freed buffers.
func (d *Device) LiveBuffers() int {
	return int(d.live.Load())
}

// Validate checks a launch configuration against the device limits.
func (d *Device) Validate(dim Dim) error {
	if dim.Threads < 1 || dim.Threads > d.maxThreads {
		return fmt.Errorf("%w: %d threads per block, want 1..%d", ErrInvalidLaunch, dim.Threads, d.maxThreads)
	}
	if dim.Blocks < 0 {
		return fmt.Errorf("%w: %d blocks", ErrInvalidLaunch, dim.Blocks)
	}
	return nil
}

// Launch runs k once per lane of dim and returns after every lane has
// finished. A panicking lane fails the launch; remaining blocks are skipped.
func (d *Device) Launch(ctx context.Context, dim Dim, k Kernel) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDeviceClosed
	}
	if err := d.Validate(dim); err != nil {
		return err
	}
	if dim.Blocks == 0 {
		return nil
	}

	schedulers := min(d.schedulers, dim.Blocks)
	blocksPer := (dim.Blocks + schedulers - 1) / schedulers

	d.logger.Debug("launch",
		zap.Int("blocks", dim.Blocks),
		zap.Int("threads", dim.Threads),
		zap.Int("schedulers", schedulers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(schedulers)

	for s := range schedulers {
		first := s * blocksPer
		last := min(first+blocksPer, dim.Blocks)
		if first >= last {
			break
		}
		g.Go(func() error {
			return runBlocks(ctx, dim, first, last, k)
		})
	}

	return g.Wait()
}

func runBlocks(ctx context.Context, dim Dim, first, last int, k Kernel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrKernelPanic, r)
		}
	}()

	for block := first; block < last; block++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for thread := range dim.Threads {
			k(Lane{Block: block, Thread: thread, BlockDim: dim.Threads, GridDim: dim.Blocks})
		}
	}

	return nil
}

// Close releases the device. Launches after Close fail with ErrDeviceClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if live := d.live.Load(); live > 0 {
		d.logger.Warn("closing device with live buffers", zap.Int64("buffers", live))
	}
	d.closed = true

	return nil
}

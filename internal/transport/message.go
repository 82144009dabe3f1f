package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
	"pkg.jsn.cam/partsearch/pkg/partsearch/protocol"
)

// Dialer opens the stream to remote worker workerID (1..Peers).
type Dialer func(ctx context.Context, workerID int) (io.ReadWriteCloser, error)

// TCPDialer dials peers[workerID-1].
func TCPDialer(peers []string, timeout time.Duration) Dialer {
	d := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context, workerID int) (io.ReadWriteCloser, error) {
		if workerID < 1 || workerID > len(peers) {
			return nil, fmt.Errorf("no peer for worker %d", workerID)
		}
		return d.DialContext(ctx, "tcp", peers[workerID-1])
	}
}

// MessageOptions configures a Message transport.
type MessageOptions struct {
	Dial          Dialer
	Logger        *zap.Logger
	Peers         int           // remote workers; the coordinator is worker 0
	MaxFrameBytes int64         // 0 means protocol.DefaultMaxFrameBytes
	IOTimeout     time.Duration // per-connection deadline when the stream supports one
}

// Message runs the search over point-to-point framed streams. The
// coordinator computes chunk 0 itself; chunks 1..Peers go to remote
// workers. Dispatch and collection are sequential, one worker at a time.
type Message struct {
	opts   MessageOptions
	logger *zap.Logger
	job    *Job
	local  *partsearch.Partial
	stop   func() bool
	conns  []io.ReadWriteCloser // index workerID-1
	mu     sync.Mutex
}

// NewMessage creates a message-passing transport.
func NewMessage(opts MessageOptions) *Message {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}

	return &Message{
		opts:   opts,
		logger: opts.Logger.Named("transport.message"),
		conns:  make([]io.ReadWriteCloser, opts.Peers),
	}
}

// Name implements Transport.
func (m *Message) Name() string { return "procs" }

// Workers implements Transport: the coordinator plus every peer.
func (m *Message) Workers(int) int {
	return m.opts.Peers + 1
}

// Deliver opens a stream to every remote worker in id order, performs the
// handshake and sends the worker's chunk as one text frame.
func (m *Message) Deliver(ctx context.Context, job *Job) error {
	if err := checkJob(job, m.Workers); err != nil {
		return err
	}
	if m.opts.Peers > 0 && m.opts.Dial == nil {
		return fmt.Errorf("%w: no dialer for %d peers", partsearch.ErrTransport, m.opts.Peers)
	}
	m.job = job

	// unblock any pending read or write once the run is abandoned
	m.stop = context.AfterFunc(ctx, m.abort)

	for k := 1; k < len(job.Chunks); k++ {
		if err := m.deliver(ctx, k); err != nil {
			return fmt.Errorf("%w: worker %d: %w", partsearch.ErrTransport, k, err)
		}
	}

	return nil
}

func (m *Message) deliver(ctx context.Context, workerID int) error {
	conn, err := m.opts.Dial(ctx, workerID)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	m.mu.Lock()
	m.conns[workerID-1] = conn
	m.mu.Unlock()
	m.setDeadline(conn)

	chunk := m.job.Chunks[workerID]
	hello := protocol.Hello{
		Version:    protocol.Version,
		RunID:      m.job.RunID,
		Pattern:    m.job.Pattern.Bytes(),
		WorkerID:   workerID,
		Workers:    len(m.job.Chunks),
		Start:      chunk.Start,
		End:        chunk.End,
		IgnoreCase: m.job.Matcher.IgnoreCase,
	}
	if err := protocol.WriteJSON(conn, hello); err != nil {
		return err
	}

	var ack protocol.HelloAck
	if err := protocol.ReadJSON(conn, m.opts.MaxFrameBytes, &ack); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if ok, err := protocol.IsCompatibleVersion(ack.Version, protocol.Version); err != nil || !ok {
		return protocol.CompatibilityError(ack.Version, protocol.Version)
	}
	if !ack.OK {
		return fmt.Errorf("%w: %s", protocol.ErrHandshakeRejected, ack.Error)
	}

	payload := partsearch.EncodeLines(m.job.Set.Records(chunk))
	if err := protocol.WriteFrame(conn, payload); err != nil {
		return err
	}

	m.logger.Debug("chunk sent",
		zap.String("run_id", m.job.RunID),
		zap.Int("worker", workerID),
		zap.String("node", ack.Node),
		zap.Stringer("chunk", chunk),
		zap.Int("bytes", len(payload)))

	return nil
}

func (m *Message) setDeadline(conn io.ReadWriteCloser) {
	if m.opts.IOTimeout <= 0 {
		return
	}
	if dc, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dc.SetDeadline(time.Now().Add(m.opts.IOTimeout))
	}
}

// Launch computes the coordinator's own chunk while remote workers run theirs.
func (m *Message) Launch(ctx context.Context) error {
	if m.job == nil {
		return fmt.Errorf("%w: launch before deliver", partsearch.ErrLaunchFailed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chunk := m.job.Chunks[0]
	pattern := m.job.Pattern.Bytes()
	start := time.Now()

	var matches []partsearch.Record
	for i := chunk.Start; i < chunk.End; i++ {
		if m.job.Matcher.MatchFields(m.job.Set.LabelAt(i), m.job.Set.ValueAt(i), pattern) {
			matches = append(matches, m.job.Set.Record(i))
		}
	}

	now := time.Now()
	m.local = &partsearch.Partial{
		ReceivedAt: now,
		Matches:    matches,
		WorkerID:   0,
		Chunk:      chunk,
		Elapsed:    now.Sub(start),
	}

	return nil
}

// Collect returns the coordinator's partial for worker 0 and otherwise
// blocks on the worker's result frame and summary.
func (m *Message) Collect(_ context.Context, workerID int) (*partsearch.Partial, error) {
	if err := checkWorker(m.job, workerID); err != nil {
		return nil, err
	}
	if workerID == 0 {
		if m.local == nil {
			return nil, fmt.Errorf("%w: collect before launch", partsearch.ErrTransport)
		}
		return m.local, nil
	}

	m.mu.Lock()
	conn := m.conns[workerID-1]
	m.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("%w: worker %d was never reached", partsearch.ErrTransport, workerID)
	}

	p, err := m.collect(conn, workerID)
	if err != nil {
		return nil, fmt.Errorf("%w: worker %d: %w", partsearch.ErrTransport, workerID, err)
	}

	m.mu.Lock()
	m.conns[workerID-1] = nil
	m.mu.Unlock()
	conn.Close()

	return p, nil
}

func (m *Message) collect(conn io.ReadWriteCloser, workerID int) (*partsearch.Partial, error) {
	block, err := protocol.ReadFrame(conn, m.opts.MaxFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	received := time.Now()

	var summary protocol.Summary
	if err := protocol.ReadJSON(conn, m.opts.MaxFrameBytes, &summary); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	lines := partsearch.SplitLines(block)
	matches := make([]partsearch.Record, 0, len(lines))
	for _, line := range lines {
		rec, err := partsearch.ParseLine(line)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}

	chunk := m.job.Chunks[workerID]
	// every line the coordinator sends is canonical, so a skipped line is a lost record
	if summary.Matches != len(matches) || summary.Skipped != 0 || summary.Records != chunk.Len() {
		return nil, fmt.Errorf("%w: %d lines, summary %+v, chunk %s",
			protocol.ErrSummaryMismatch, len(matches), summary, chunk)
	}

	m.logger.Debug("result received",
		zap.String("run_id", m.job.RunID),
		zap.Int("worker", workerID),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", summary.Elapsed))

	return &partsearch.Partial{
		ReceivedAt: received,
		Matches:    matches,
		WorkerID:   workerID,
		Chunk:      chunk,
		Elapsed:    summary.Elapsed,
	}, nil
}

func (m *Message) abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.conns {
		if conn != nil {
			conn.Close()
		}
	}
}

// Close closes every stream still open.
func (m *Message) Close() error {
	if m.stop != nil {
		m.stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, conn := range m.conns {
		if conn != nil {
			conn.Close()
			m.conns[i] = nil
		}
	}

	return nil
}

package worker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
	"pkg.jsn.cam/partsearch/pkg/partsearch/protocol"
)

// Config holds worker configuration
type Config struct {
	Logger        *zap.Logger
	MaxFrameBytes int64         // 0 means protocol.DefaultMaxFrameBytes
	IOTimeout     time.Duration // per-connection deadline, 0 disables
}

// Node serves search requests, one per connection.
type Node struct {
	logger *zap.Logger
	id     string
	config Config
}

// NewNode creates a worker node with a fresh identity.
func NewNode(cfg Config) *Node {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}

	id := uuid.New().String()

	return &Node{
		logger: cfg.Logger.Named("worker").With(zap.String("node", id)),
		id:     id,
		config: cfg,
	}
}

// ID returns the node identity reported in handshakes.
func (n *Node) ID() string {
	return n.id
}

// ServeConn runs one search over conn and closes it. Cancelling ctx
// closes the connection, which unblocks any pending read or write.
func (n *Node) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if n.config.IOTimeout > 0 {
		if dc, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
			_ = dc.SetDeadline(time.Now().Add(n.config.IOTimeout))
		}
	}

	var hello protocol.Hello
	if err := protocol.ReadJSON(conn, n.config.MaxFrameBytes, &hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}

	log := n.logger.With(zap.String("run_id", hello.RunID), zap.Int("worker", hello.WorkerID))

	processor, err := n.accept(&hello)
	if err != nil {
		log.Warn("rejecting search", zap.Error(err))
		ack := protocol.HelloAck{Version: protocol.Version, Node: n.id, Error: err.Error()}
		if werr := protocol.WriteJSON(conn, ack); werr != nil {
			return fmt.Errorf("write ack: %w", werr)
		}
		return err
	}

	if err := protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, Node: n.id, OK: true}); err != nil {
		return fmt.Errorf("write ack: %w", err)
	}

	block, err := protocol.ReadFrame(conn, n.config.MaxFrameBytes)
	if err != nil {
		return fmt.Errorf("read chunk: %w", err)
	}

	out, summary, err := processor.Process(ctx, block)
	if err != nil {
		return fmt.Errorf("process chunk: %w", err)
	}
	if got, want := summary.Records+summary.Skipped, hello.Chunk().Len(); got != want {
		log.Warn("chunk size differs from assignment", zap.Int("lines", got), zap.Int("assigned", want))
	}

	if err := protocol.WriteFrame(conn, out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := protocol.WriteJSON(conn, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	log.Info("chunk done",
		zap.Stringer("chunk", hello.Chunk()),
		zap.Int("records", summary.Records),
		zap.Int("matches", summary.Matches),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Elapsed))

	return nil
}

func (n *Node) accept(hello *protocol.Hello) (*Processor, error) {
	ok, err := protocol.IsCompatibleVersion(protocol.Version, hello.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, protocol.CompatibilityError(protocol.Version, hello.Version)
	}
	if hello.Start > hello.End {
		return nil, fmt.Errorf("%w: %s", partsearch.ErrChunkMismatch, hello.Chunk())
	}

	pattern, err := partsearch.NewPattern(string(hello.Pattern))
	if err != nil {
		return nil, err
	}

	return NewProcessor(pattern, partsearch.Matcher{IgnoreCase: hello.IgnoreCase}), nil
}

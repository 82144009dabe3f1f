package worker

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server accepts coordinator connections and serves each on its own goroutine
type Server struct {
	node     *Node
	listener net.Listener
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewServer listens on addr (e.g. ":9100", or ":0" for an ephemeral port)
func NewServer(node *Node, addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		node:     node,
		listener: listener,
		logger:   node.logger,
	}, nil
}

// Addr returns the address the server is listening on
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is done or the listener is closed.
// It waits for in-flight searches before returning.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("worker listening", zap.String("addr", s.Addr()))

	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("worker shutting down")
				return nil
			}
			return err
		}

		s.wg.Go(func() {
			if err := s.node.ServeConn(ctx, conn); err != nil {
				s.logger.Warn("connection failed",
					zap.String("remote", conn.RemoteAddr().String()),
					zap.Error(err))
			}
		})
	}
}

// Close stops accepting connections
func (s *Server) Close() error {
	return s.listener.Close()
}

package worker

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// Pipes runs in-process workers on the far end of net.Pipe connections,
// so a single host can use the message-passing path without sockets.
type Pipes struct {
	ctx  context.Context
	node *Node
	errs []error
	wg   sync.WaitGroup
	mu   sync.Mutex
}

// NewPipes creates a pipe spawner. Workers stop when ctx is done.
func NewPipes(ctx context.Context, node *Node) *Pipes {
	return &Pipes{ctx: ctx, node: node}
}

// Dial starts a worker goroutine and returns the coordinator end of its pipe.
func (p *Pipes) Dial(ctx context.Context, _ int) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, server := net.Pipe()
	p.wg.Go(func() {
		if err := p.node.ServeConn(p.ctx, server); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	})

	return client, nil
}

// Wait blocks until every spawned worker has returned and reports their errors.
func (p *Pipes) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Join(p.errs...)
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pkg.jsn.cam/partsearch/internal/worker"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
	"pkg.jsn.cam/partsearch/pkg/partsearch/protocol"
)

// fakeWorkers serves every dialed pipe with serve, tracking the goroutines.
type fakeWorkers struct {
	serve func(conn net.Conn)
	wg    sync.WaitGroup
}

func (f *fakeWorkers) Dial(_ context.Context, _ int) (io.ReadWriteCloser, error) {
	client, server := net.Pipe()
	f.wg.Go(func() {
		defer server.Close()
		f.serve(server)
	})
	return client, nil
}

func newJob(t *testing.T, tr Transport, records []partsearch.Record, pattern string) *Job {
	t.Helper()

	set := partsearch.NewRecordSet(records)
	chunks, err := partsearch.Partition(set.Len(), tr.Workers(set.Len()))
	require.NoError(t, err)

	return &Job{RunID: "test", Set: set, Pattern: partsearch.MustPattern(pattern), Chunks: chunks}
}

func TestMessage_CoordinatorIsWorkerZero(t *testing.T) {
	t.Parallel()

	pipes := worker.NewPipes(context.Background(), worker.NewNode(worker.Config{}))
	tr := NewMessage(MessageOptions{Peers: 2, Dial: pipes.Dial})
	require.Equal(t, 3, tr.Workers(100))
	require.Equal(t, "procs", tr.Name())

	ctx := context.Background()
	job := newJob(t, tr, phonebook(), "Ali")
	require.NoError(t, tr.Deliver(ctx, job))
	require.NoError(t, tr.Launch(ctx))

	p0, err := tr.Collect(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, partsearch.Chunk{Start: 0, End: 1}, p0.Chunk)
	require.Equal(t, []partsearch.Record{phonebook()[0]}, p0.Matches)
	require.Nil(t, p0.Hits)

	p2, err := tr.Collect(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []partsearch.Record{phonebook()[2]}, p2.Matches)

	p1, err := tr.Collect(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, p1.Matches)

	require.NoError(t, tr.Close())
	require.NoError(t, pipes.Wait())
}

func TestMessage_Failures(t *testing.T) {
	t.Parallel()

	readHello := func(conn net.Conn) bool {
		var hello protocol.Hello
		return protocol.ReadJSON(conn, 0, &hello) == nil
	}

	tests := []struct {
		name    string
		serve   func(conn net.Conn)
		wantErr error
	}{
		{
			name: "incompatible worker",
			serve: func(conn net.Conn) {
				if readHello(conn) {
					protocol.WriteJSON(conn, protocol.HelloAck{Version: "v2.0.0", OK: true})
				}
			},
			wantErr: protocol.ErrIncompatibleVersion,
		},
		{
			name: "rejected",
			serve: func(conn net.Conn) {
				if readHello(conn) {
					protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, Error: "busy"})
				}
			},
			wantErr: protocol.ErrHandshakeRejected,
		},
		{
			name: "hangs up after hello",
			serve: func(conn net.Conn) {
				readHello(conn)
			},
			wantErr: io.EOF,
		},
		{
			name: "torn result frame",
			serve: func(conn net.Conn) {
				if !readHello(conn) {
					return
				}
				protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, OK: true})
				protocol.ReadFrame(conn, 0)
				conn.Write([]byte{0, 0, 0, 0, 0, 0, 0, 99, 'x'})
			},
			wantErr: protocol.ErrShortFrame,
		},
		{
			name: "summary disagrees with result",
			serve: func(conn net.Conn) {
				if !readHello(conn) {
					return
				}
				protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, OK: true})
				protocol.ReadFrame(conn, 0)
				protocol.WriteFrame(conn, []byte("\"Alicia\",\"333\"\n"))
				protocol.WriteJSON(conn, protocol.Summary{Records: 2, Matches: 5})
			},
			wantErr: protocol.ErrSummaryMismatch,
		},
		{
			name: "worker skipped a line",
			serve: func(conn net.Conn) {
				if !readHello(conn) {
					return
				}
				protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, OK: true})
				protocol.ReadFrame(conn, 0)
				protocol.WriteFrame(conn, nil)
				protocol.WriteJSON(conn, protocol.Summary{Skipped: 1})
			},
			wantErr: protocol.ErrSummaryMismatch,
		},
		{
			name: "oversized result",
			serve: func(conn net.Conn) {
				if !readHello(conn) {
					return
				}
				protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, OK: true})
				protocol.ReadFrame(conn, 0)
				protocol.WriteFrame(conn, make([]byte, 4096))
			},
			wantErr: protocol.ErrFrameTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			workers := &fakeWorkers{serve: tt.serve}
			tr := NewMessage(MessageOptions{Peers: 1, Dial: workers.Dial, MaxFrameBytes: 1024})

			ctx := context.Background()
			err := tr.Deliver(ctx, newJob(t, tr, phonebook(), "Ali"))
			if err == nil {
				require.NoError(t, tr.Launch(ctx))
				_, err = tr.Collect(ctx, 0)
				require.NoError(t, err)
				_, err = tr.Collect(ctx, 1)
			}

			require.ErrorIs(t, err, partsearch.ErrTransport)
			require.ErrorIs(t, err, tt.wantErr)

			require.NoError(t, tr.Close())
			workers.wg.Wait()
		})
	}
}

func TestMessage_DialFailure(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	tr := NewMessage(MessageOptions{Peers: 2, Dial: func(context.Context, int) (io.ReadWriteCloser, error) {
		return nil, refused
	}})
	defer tr.Close()

	err := tr.Deliver(context.Background(), newJob(t, tr, phonebook(), "x"))
	require.ErrorIs(t, err, partsearch.ErrTransport)
	require.ErrorIs(t, err, refused)
}

func TestMessage_NoDialer(t *testing.T) {
	t.Parallel()

	tr := NewMessage(MessageOptions{Peers: 1})
	defer tr.Close()

	err := tr.Deliver(context.Background(), newJob(t, tr, phonebook(), "x"))
	require.ErrorIs(t, err, partsearch.ErrTransport)
}

func TestMessage_CancelUnblocksCollect(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	workers := &fakeWorkers{serve: func(conn net.Conn) {
		var hello protocol.Hello
		if protocol.ReadJSON(conn, 0, &hello) != nil {
			return
		}
		protocol.WriteJSON(conn, protocol.HelloAck{Version: protocol.Version, OK: true})
		protocol.ReadFrame(conn, 0)
		<-release // never answers until the test ends
	}}

	tr := NewMessage(MessageOptions{Peers: 1, Dial: workers.Dial})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, tr.Deliver(ctx, newJob(t, tr, phonebook(), "x")))
	require.NoError(t, tr.Launch(ctx))

	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := tr.Collect(ctx, 1)
	require.ErrorIs(t, err, partsearch.ErrTransport)

	close(release)
	require.NoError(t, tr.Close())
	workers.wg.Wait()
}

func TestTCPDialer(t *testing.T) {
	t.Parallel()

	srv, err := worker.NewServer(worker.NewNode(worker.Config{}), "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	tr := NewMessage(MessageOptions{
		Peers:     1,
		Dial:      TCPDialer([]string{srv.Addr()}, time.Second),
		IOTimeout: 5 * time.Second,
	})
	res := run(t, tr, phonebook(), "Ali", false)
	require.Equal(t, 2, res.MatchCount)

	_, err = TCPDialer(nil, time.Second)(ctx, 1)
	require.Error(t, err)

	cancel()
	require.NoError(t, <-done)
}

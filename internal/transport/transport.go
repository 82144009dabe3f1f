// Package transport moves chunks from the coordinator to workers and
// partial results back. Bulk runs every worker as a block of lanes on a
// shared device; Message talks to worker processes over framed streams.
package transport

import (
	"context"
	"fmt"

	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// Job is everything a transport needs to run one search.
type Job struct {
	RunID   string
	Set     *partsearch.RecordSet
	Pattern partsearch.Pattern
	Matcher partsearch.Matcher
	Chunks  []partsearch.Chunk // one per worker, from partsearch.Partition
}

// Transport is the boundary between the coordinator and its workers.
//
// A transport is used for one job: Deliver, then Launch, then Collect once
// per worker in ascending id order, then Close. Collect blocks until the
// worker's partial is complete; a worker never sees a torn chunk.
type Transport interface {
	// Name identifies the backend in logs and run history.
	Name() string
	// Workers returns how many workers a job over n records will use.
	Workers(n int) int
	// Deliver hands every chunk of job to its worker.
	Deliver(ctx context.Context, job *Job) error
	// Launch starts computation on all delivered chunks.
	Launch(ctx context.Context) error
	// Collect returns the partial result of one worker.
	Collect(ctx context.Context, workerID int) (*partsearch.Partial, error)
	// Close releases connections and device memory.
	Close() error
}

func checkJob(job *Job, workersFor func(n int) int) error {
	if job == nil || job.Set == nil {
		return fmt.Errorf("%w: empty job", partsearch.ErrTransport)
	}
	if workers := workersFor(job.Set.Len()); len(job.Chunks) != workers {
		return fmt.Errorf("%w: %d chunks for %d workers", partsearch.ErrInvalidWorkerCount, len(job.Chunks), workers)
	}
	return nil
}

func checkWorker(job *Job, workerID int) error {
	if job == nil {
		return fmt.Errorf("%w: collect before deliver", partsearch.ErrTransport)
	}
	if workerID < 0 || workerID >= len(job.Chunks) {
		return fmt.Errorf("%w: no worker %d", partsearch.ErrTransport, workerID)
	}
	return nil
}

package partsearch

import (
	"fmt"
	"time"
)

// WorkerStat summarizes one worker's contribution to a search.
type WorkerStat struct {
	WorkerID int           `json:"worker_id"`
	Chunk    Chunk         `json:"chunk"`
	Matches  int           `json:"matches"`
	Elapsed  time.Duration `json:"elapsed"`  // worker-side compute time, zero if unknown
	Received time.Duration `json:"received"` // time from dispatch until the partial arrived
}

// Result is the aggregated output of one search.
type Result struct {
	Matches    []Record
	Workers    []WorkerStat
	Total      int
	MatchCount int
	Elapsed    time.Duration
}

// Aggregator concatenates partial results in ascending worker order.
//
// It never re-sorts: output order is correct only because Partition hands
// out ascending, contiguous chunks. Add enforces that each partial arrives
// in worker order and covers exactly the chunk it was assigned.
type Aggregator struct {
	started time.Time
	last    time.Time
	now     func() time.Time
	set     *RecordSet
	chunks  []Chunk
	matches []Record
	workers []WorkerStat
	next    int
}

// NewAggregator prepares aggregation of the partials for chunks over set.
// The dispatch clock starts now; use Start to reset it.
func NewAggregator(set *RecordSet, chunks []Chunk) *Aggregator {
	a := &Aggregator{
		now:     time.Now,
		set:     set,
		chunks:  chunks,
		workers: make([]WorkerStat, 0, len(chunks)),
	}
	a.started = a.now()
	a.last = a.started

	return a
}

// Start marks the dispatch time elapsed time is measured from.
func (a *Aggregator) Start(t time.Time) {
	a.started = t
	a.last = t
}

// Add appends the next worker's partial result.
func (a *Aggregator) Add(p *Partial) error {
	if a.next >= len(a.chunks) {
		return fmt.Errorf("%w: unexpected partial from worker %d", ErrOutOfOrder, p.WorkerID)
	}
	if p.WorkerID != a.next {
		return fmt.Errorf("%w: got worker %d, want %d", ErrOutOfOrder, p.WorkerID, a.next)
	}

	want := a.chunks[a.next]
	if p.Chunk != want {
		return fmt.Errorf("%w: worker %d reported %s, assigned %s", ErrChunkMismatch, p.WorkerID, p.Chunk, want)
	}

	switch {
	case p.Hits != nil:
		if len(p.Hits) != want.Len() {
			return fmt.Errorf("%w: worker %d returned %d flags for %d records",
				ErrChunkMismatch, p.WorkerID, len(p.Hits), want.Len())
		}
		for i, hit := range p.Hits {
			if hit {
				a.matches = append(a.matches, a.set.Record(want.Start+i))
			}
		}
	default:
		if len(p.Matches) > want.Len() {
			return fmt.Errorf("%w: worker %d returned %d matches for %d records",
				ErrChunkMismatch, p.WorkerID, len(p.Matches), want.Len())
		}
		a.matches = append(a.matches, p.Matches...)
	}

	received := p.ReceivedAt
	if received.IsZero() {
		received = a.now()
	}
	if received.After(a.last) {
		a.last = received
	}
	a.workers = append(a.workers, WorkerStat{
		WorkerID: p.WorkerID,
		Chunk:    p.Chunk,
		Matches:  p.MatchCount(),
		Elapsed:  p.Elapsed,
		Received: received.Sub(a.started),
	})
	a.next++

	return nil
}

// Finish returns the aggregated result once every worker has reported.
func (a *Aggregator) Finish() (*Result, error) {
	if a.next != len(a.chunks) {
		return nil, fmt.Errorf("%w: %d of %d workers reported", ErrMissingPartial, a.next, len(a.chunks))
	}

	total := 0
	for _, c := range a.chunks {
		total += c.Len()
	}

	return &Result{
		Matches:    a.matches,
		Workers:    a.workers,
		Total:      total,
		MatchCount: len(a.matches),
		Elapsed:    a.last.Sub(a.started),
	}, nil
}

// Aggregate runs an Aggregator over partials that are already in worker order.
func Aggregate(set *RecordSet, chunks []Chunk, partials []*Partial) (*Result, error) {
	a := NewAggregator(set, chunks)
	for _, p := range partials {
		if err := a.Add(p); err != nil {
			return nil, err
		}
	}
	return a.Finish()
}

package partsearch

import "fmt"

// Partition splits n records across workers into contiguous, ascending,
// non-overlapping ranges that cover [0, n) exactly.
//
// Every worker gets ceil(n/workers) records except the last non-empty one,
// which may get fewer. Workers past the end get an empty chunk anchored at n.
// Worker 0 is the coordinator whenever the coordinator also computes.
func Partition(n, workers int) ([]Chunk, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, workers)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecordCount, n)
	}

	size := ChunkSize(n, workers)
	chunks := make([]Chunk, workers)
	for k := range chunks {
		chunks[k] = Chunk{
			Start: min(k*size, n),
			End:   min((k+1)*size, n),
		}
	}

	return chunks, nil
}

// ChunkSize returns ceil(n/workers), the size of every full chunk.
func ChunkSize(n, workers int) int {
	if workers < 1 {
		return 0
	}
	return (n + workers - 1) / workers
}

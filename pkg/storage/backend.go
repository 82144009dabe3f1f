package storage

import (
	"errors"
	"fmt"
)

// ErrBucketNotFound is returned when an operation names a bucket that was never created.
var ErrBucketNotFound = errors.New("bucket not found")

// Backend is an append-friendly key-value store organized in buckets.
// Keys within a bucket iterate in byte order, so sequence keys produced by
// Append iterate oldest first.
type Backend interface {
	// Bucket operations
	CreateBucket(name []byte) error

	// KV operations within buckets
	Append(bucket, value []byte) (key []byte, err error)
	Delete(bucket, key []byte) error

	// Iteration and size
	ForEach(bucket []byte, fn func(k, v []byte) error) error
	Count(bucket []byte) (int, error)

	// Lifecycle
	Close() error
}

// SequenceKey renders a sequence number as a fixed-width key that sorts numerically.
func SequenceKey(seq uint64) []byte {
	return fmt.Appendf(nil, "%020d", seq)
}

// Trim deletes the oldest entries of bucket until at most keep remain.
// A non-positive keep disables trimming.
func Trim(b Backend, bucket []byte, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	count, err := b.Count(bucket)
	if err != nil {
		return 0, err
	}
	excess := count - keep
	if excess <= 0 {
		return 0, nil
	}

	victims := make([][]byte, 0, excess)
	errStop := errors.New("stop")
	err = b.ForEach(bucket, func(k, _ []byte) error {
		if len(victims) == excess {
			return errStop
		}
		victims = append(victims, append([]byte(nil), k...))
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return 0, err
	}

	for _, k := range victims {
		if err := b.Delete(bucket, k); err != nil {
			return 0, err
		}
	}

	return len(victims), nil
}

func bucketNotFound(name []byte) error {
	return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
}

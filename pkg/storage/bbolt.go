package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BboltBackend implements Backend using bbolt
type BboltBackend struct {
	db *bolt.DB
}

// NewBboltBackend opens (or creates) the database at dbPath.
// The file lock is waited on for at most a second so a second process fails fast.
func NewBboltBackend(dbPath string) (*BboltBackend, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	return &BboltBackend{db: db}, nil
}

// CreateBucket creates a bucket if it does not exist yet
func (b *BboltBackend) CreateBucket(name []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
}

// Append stores value under the bucket's next sequence key
func (b *BboltBackend) Append(bucket, value []byte) ([]byte, error) {
	var key []byte
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return bucketNotFound(bucket)
		}
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		key = SequenceKey(seq)
		return bkt.Put(key, value)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// Delete removes a key from a bucket
func (b *BboltBackend) Delete(bucket, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return bucketNotFound(bucket)
		}
		return bkt.Delete(key)
	})
}

// ForEach iterates over all key-value pairs in a bucket in key order.
// k and v are only valid inside fn.
func (b *BboltBackend) ForEach(bucket []byte, fn func(k, v []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return bucketNotFound(bucket)
		}
		return bkt.ForEach(fn)
	})
}

// Count returns the number of keys in a bucket
func (b *BboltBackend) Count(bucket []byte) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		if bkt == nil {
			return bucketNotFound(bucket)
		}
		n = bkt.Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database
func (b *BboltBackend) Close() error {
	return b.db.Close()
}

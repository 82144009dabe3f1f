package storage

import (
	"slices"
	"sync"
)

// MemoryBackend implements Backend using in-memory maps (not persistent)
type MemoryBackend struct {
	buckets map[string]*memoryBucket
	mu      sync.RWMutex
}

type memoryBucket struct {
	data map[string][]byte
	seq  uint64
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		buckets: make(map[string]*memoryBucket),
	}
}

// CreateBucket creates a bucket if it does not exist yet
func (m *MemoryBackend) CreateBucket(name []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.buckets[string(name)]; !exists {
		m.buckets[string(name)] = &memoryBucket{data: make(map[string][]byte)}
	}

	return nil
}

// Append stores value under the bucket's next sequence key
func (m *MemoryBackend) Append(bucket, value []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, exists := m.buckets[string(bucket)]
	if !exists {
		return nil, bucketNotFound(bucket)
	}

	bkt.seq++
	key := SequenceKey(bkt.seq)
	bkt.data[string(key)] = slices.Clone(value)

	return key, nil
}

// Delete removes a key from a bucket
func (m *MemoryBackend) Delete(bucket, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, exists := m.buckets[string(bucket)]
	if !exists {
		return bucketNotFound(bucket)
	}

	delete(bkt.data, string(key))

	return nil
}

// ForEach iterates over all key-value pairs in a bucket in key order.
// It works on a snapshot, so fn may call back into the backend.
func (m *MemoryBackend) ForEach(bucket []byte, fn func(k, v []byte) error) error {
	m.mu.RLock()
	bkt, exists := m.buckets[string(bucket)]
	if !exists {
		m.mu.RUnlock()
		return bucketNotFound(bucket)
	}

	keys := make([]string, 0, len(bkt.data))
	snapshot := make(map[string][]byte, len(bkt.data))
	for k, v := range bkt.data {
		keys = append(keys, k)
		snapshot[k] = v
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	for _, k := range keys {
		if err := fn([]byte(k), snapshot[k]); err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of keys in a bucket
func (m *MemoryBackend) Count(bucket []byte) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bkt, exists := m.buckets[string(bucket)]
	if !exists {
		return 0, bucketNotFound(bucket)
	}

	return len(bkt.data), nil
}

// Close is a no-op for the in-memory backend
func (m *MemoryBackend) Close() error {
	return nil
}

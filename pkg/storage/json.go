package storage

import (
	"encoding/json"
	"fmt"
)

// JSONStore wraps a Backend and provides JSON serialization convenience methods
type JSONStore struct {
	backend Backend
}

// NewJSONStore creates a new JSON store wrapper around a backend
func NewJSONStore(backend Backend) *JSONStore {
	return &JSONStore{backend: backend}
}

// Backend returns the underlying backend
func (j *JSONStore) Backend() Backend {
	return j.backend
}

// AppendJSON stores a JSON-encoded value under the bucket's next sequence key
func (j *JSONStore) AppendJSON(bucket []byte, v any) ([]byte, error) {
	data, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}

	return j.backend.Append(bucket, data)
}

// ForEachJSON decodes every value in bucket into a fresh T, in key order.
// A value that fails to decode is handed to bad; the iteration stops if bad
// returns an error or is nil.
func ForEachJSON[T any](j *JSONStore, bucket []byte, fn func(key []byte, v T) error, bad func(key []byte, err error) error) error {
	return j.backend.ForEach(bucket, func(k, data []byte) error {
		var v T
		if err := DecodeJSON(data, &v); err != nil {
			err = fmt.Errorf("key %s: %w", k, err)
			if bad == nil {
				return err
			}
			return bad(k, err)
		}
		return fn(k, v)
	})
}

// Close closes the underlying backend
func (j *JSONStore) Close() error {
	return j.backend.Close()
}

// EncodeJSON marshals a value to JSON bytes
func EncodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return data, nil
}

// DecodeJSON unmarshals JSON bytes to a value
func DecodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return nil
}

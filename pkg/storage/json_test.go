package storage

import (
	"errors"
	"testing"
)

type testRun struct {
	Pattern string `json:"pattern"`
	Matches int    `json:"matches"`
}

func TestJSONStore(t *testing.T) {
	t.Run("AppendAndForEachJSON", func(t *testing.T) {
		store := NewJSONStore(NewMemoryBackend())
		defer store.Close()

		store.Backend().CreateBucket([]byte("runs"))
		for _, r := range []testRun{{"a", 1}, {"b", 2}, {"c", 3}} {
			if _, err := store.AppendJSON([]byte("runs"), r); err != nil {
				t.Fatalf("AppendJSON failed: %v", err)
			}
		}

		var got []testRun
		err := ForEachJSON(store, []byte("runs"), func(_ []byte, r testRun) error {
			got = append(got, r)
			return nil
		}, nil)
		if err != nil {
			t.Fatalf("ForEachJSON failed: %v", err)
		}
		if len(got) != 3 || got[0].Pattern != "a" || got[2].Matches != 3 {
			t.Errorf("ForEachJSON = %+v", got)
		}
	})

	t.Run("ForEachJSONBadValue", func(t *testing.T) {
		store := NewJSONStore(NewMemoryBackend())
		defer store.Close()

		store.Backend().CreateBucket([]byte("runs"))
		store.AppendJSON([]byte("runs"), testRun{"a", 1})
		badKey, _ := store.Backend().Append([]byte("runs"), []byte("{broken"))
		store.AppendJSON([]byte("runs"), testRun{"c", 3})

		noop := func(_ []byte, _ testRun) error { return nil }
		if err := ForEachJSON(store, []byte("runs"), noop, nil); err == nil {
			t.Error("ForEachJSON without a handler should fail on undecodable values")
		}

		var (
			got     []string
			skipped []string
		)
		err := ForEachJSON(store, []byte("runs"), func(_ []byte, r testRun) error {
			got = append(got, r.Pattern)
			return nil
		}, func(k []byte, _ error) error {
			skipped = append(skipped, string(k))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEachJSON with skip handler failed: %v", err)
		}
		if len(got) != 2 || got[0] != "a" || got[1] != "c" {
			t.Errorf("decoded = %v, want [a c]", got)
		}
		if len(skipped) != 1 || skipped[0] != string(badKey) {
			t.Errorf("skipped = %v, want [%s]", skipped, badKey)
		}

		stop := errors.New("stop")
		err = ForEachJSON(store, []byte("runs"), noop, func(_ []byte, _ error) error { return stop })
		if !errors.Is(err, stop) {
			t.Errorf("ForEachJSON error = %v, want handler error", err)
		}
	})

	t.Run("EncodeError", func(t *testing.T) {
		store := NewJSONStore(NewMemoryBackend())
		defer store.Close()

		store.Backend().CreateBucket([]byte("runs"))
		_, err := store.AppendJSON([]byte("runs"), make(chan int))
		if err == nil || errors.Is(err, ErrBucketNotFound) {
			t.Errorf("AppendJSON(chan) error = %v, want encode error", err)
		}
		if n, _ := store.Backend().Count([]byte("runs")); n != 0 {
			t.Errorf("failed AppendJSON stored %d values", n)
		}
	})
}

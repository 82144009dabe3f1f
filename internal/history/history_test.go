package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pkg.jsn.cam/partsearch/pkg/storage"
)

func TestRunStore_SaveAndList(t *testing.T) {
	t.Parallel()

	s := NewNoOpStore()
	defer s.Close()

	for i := range 3 {
		require.NoError(t, s.SaveRun(&Run{ID: fmt.Sprintf("run-%d", i), Status: StatusDone, Matches: i}))
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "run-2", runs[0].ID, "newest first")
	require.Equal(t, "run-0", runs[2].ID)

	runs, err = s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-1", runs[1].ID)
}

func TestRunStore_Keep(t *testing.T) {
	t.Parallel()

	s, err := NewRunStore(storage.NewMemoryBackend(), Options{Keep: 2})
	require.NoError(t, err)
	defer s.Close()

	for i := range 5 {
		require.NoError(t, s.SaveRun(&Run{ID: fmt.Sprintf("run-%d", i)}))
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-4", runs[0].ID)
	require.Equal(t, "run-3", runs[1].ID)
}

func TestBboltStore_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s, err := NewBboltStore(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(&Run{
		ID:      "failed-run",
		Started: started,
		Status:  StatusFailed,
		Stage:   "BUILD_RECORD_SET",
		Error:   "source unreadable",
	}))
	require.NoError(t, s.Close())

	s, err = NewBboltStore(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusFailed, runs[0].Status)
	require.Equal(t, "BUILD_RECORD_SET", runs[0].Stage)
	require.True(t, started.Equal(runs[0].Started))
}

func TestRunStore_SkipsCorrupted(t *testing.T) {
	t.Parallel()

	backend := storage.NewMemoryBackend()
	s, err := NewRunStore(backend, Options{})
	require.NoError(t, err)

	require.NoError(t, s.SaveRun(&Run{ID: "good"}))
	_, err = backend.Append(runsBucket, []byte("{not json"))
	require.NoError(t, err)

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "good", runs[0].ID)
}

package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/store"
)

func TestFileSnapshotStore(t *testing.T) {
	s, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	runID := "run-abc"

	for v := 1; v <= 2; v++ {
		err := s.Save(ctx, &store.Snapshot{
			ID:        "snap-" + string(rune('0'+v)),
			RunID:     runID,
			Version:   v,
			State:     map[string]any{"variables": map[string]any{"n": v}},
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	loaded, err := s.Load(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.RunID)

	latest, err := s.Latest(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	list, err := s.List(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Overwriting the same ID keeps a single file.
	require.NoError(t, s.Save(ctx, &store.Snapshot{ID: "snap-2", RunID: runID, Version: 3}))
	list, err = s.List(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.Delete(ctx, "snap-1"))
	_, err = s.Load(ctx, "snap-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Clear(ctx, runID))
	list, err = s.List(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileSnapshotStoreUnknownRun(t *testing.T) {
	s, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

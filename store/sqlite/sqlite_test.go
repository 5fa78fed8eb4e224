package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/store"
)

func TestSqliteSnapshotStore(t *testing.T) {
	s, err := NewSqliteSnapshotStore(SqliteOptions{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	runID := "run-1"

	for v := 1; v <= 2; v++ {
		err := s.Save(ctx, &store.Snapshot{
			ID:        "snap-" + string(rune('0'+v)),
			RunID:     runID,
			Version:   v,
			State:     map[string]any{"version": v},
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	loaded, err := s.Load(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)

	latest, err := s.Latest(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	list, err := s.List(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.Delete(ctx, "snap-1"))
	_, err = s.Load(ctx, "snap-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Clear(ctx, runID))
	_, err = s.Latest(ctx, runID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

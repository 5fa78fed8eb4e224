package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/store"
)

func TestPostgresSnapshotStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "snapshots")

	snapshot := &store.Snapshot{
		ID:        "snap-1",
		RunID:     "run-1",
		Version:   1,
		State:     map[string]any{"query": "q"},
		Timestamp: time.Now(),
	}
	stateJSON, _ := json.Marshal(snapshot.State)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
		WithArgs(snapshot.ID, snapshot.RunID, snapshot.Version, stateJSON, snapshot.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.Save(context.Background(), snapshot)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "snapshots")

	stateJSON, _ := json.Marshal(map[string]any{"query": "q"})
	ts := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, run_id, version, state, timestamp")).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "version", "state", "timestamp"}).
			AddRow("snap-1", "run-1", 1, stateJSON, ts))

	loaded, err := s.Load(context.Background(), "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	state, ok := loaded.State.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "q", state["query"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_LoadMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "snapshots")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, run_id, version, state, timestamp")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "version", "state", "timestamp"}))

	_, err = s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresSnapshotStore_Latest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "snapshots")

	stateJSON, _ := json.Marshal(map[string]any{"n": 2})
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version DESC LIMIT 1")).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "version", "state", "timestamp"}).
			AddRow("snap-2", "run-1", 2, stateJSON, time.Now()))

	latest, err := s.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestPostgresSnapshotStore_Clear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "snapshots")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM snapshots WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	assert.NoError(t, s.Clear(context.Background(), "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

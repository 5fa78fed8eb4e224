// Package postgres provides a SnapshotStore backed by PostgreSQL, for
// deployments where run state must outlive the host machine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gasl-lang/gasl/store"
)

// DBPool is the subset of pgxpool.Pool the store needs; it is an interface
// so tests can substitute a mock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresSnapshotStore implements store.SnapshotStore using PostgreSQL.
type PostgresSnapshotStore struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configuration for the Postgres connection.
type PostgresOptions struct {
	ConnString string
	TableName  string // default "snapshots"
}

// NewPostgresSnapshotStore creates a store with a new connection pool.
func NewPostgresSnapshotStore(ctx context.Context, opts PostgresOptions) (*PostgresSnapshotStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresSnapshotStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresSnapshotStoreWithPool creates a store with an existing pool.
func NewPostgresSnapshotStoreWithPool(pool DBPool, tableName string) *PostgresSnapshotStore {
	if tableName == "" {
		tableName = "snapshots"
	}
	return &PostgresSnapshotStore{pool: pool, tableName: tableName}
}

// InitSchema creates the snapshot table if it does not exist.
func (s *PostgresSnapshotStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			state JSONB NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id, version);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresSnapshotStore) Close() {
	s.pool.Close()
}

// Save stores a snapshot.
func (s *PostgresSnapshotStore) Save(ctx context.Context, snapshot *store.Snapshot) error {
	stateJSON, err := json.Marshal(snapshot.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, version, state, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			timestamp = EXCLUDED.timestamp
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.RunID,
		snapshot.Version,
		stateJSON,
		snapshot.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID.
func (s *PostgresSnapshotStore) Load(ctx context.Context, snapshotID string) (*store.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, version, state, timestamp
		FROM %s WHERE id = $1
	`, s.tableName)

	snapshot, err := scanSnapshot(s.pool.QueryRow(ctx, query, snapshotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return snapshot, err
}

// Latest returns the highest-version snapshot for a run.
func (s *PostgresSnapshotStore) Latest(ctx context.Context, runID string) (*store.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, version, state, timestamp
		FROM %s WHERE run_id = $1
		ORDER BY version DESC LIMIT 1
	`, s.tableName)

	snapshot, err := scanSnapshot(s.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return snapshot, err
}

// List returns all snapshots for a run in ascending version order.
func (s *PostgresSnapshotStore) List(ctx context.Context, runID string) ([]*store.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, version, state, timestamp
		FROM %s WHERE run_id = $1
		ORDER BY version ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*store.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

// Delete removes a snapshot.
func (s *PostgresSnapshotStore) Delete(ctx context.Context, snapshotID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, snapshotID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Clear removes all snapshots for a run.
func (s *PostgresSnapshotStore) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}

func scanSnapshot(row pgx.Row) (*store.Snapshot, error) {
	var snapshot store.Snapshot
	var stateJSON []byte

	err := row.Scan(
		&snapshot.ID,
		&snapshot.RunID,
		&snapshot.Version,
		&stateJSON,
		&snapshot.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &snapshot.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &snapshot, nil
}

var _ store.SnapshotStore = (*PostgresSnapshotStore)(nil)

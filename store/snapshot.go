package store

import (
	"context"
	"time"
)

// Snapshot is one fully-formed, versioned copy of a run's state document.
// The engine writes a new snapshot after every durable mutation, so the
// highest version for a run is always a complete last-good state.
type Snapshot struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Version   int       `json:"version"`
	State     any       `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotStore is the persistence contract for state snapshots.
type SnapshotStore interface {
	// Save stores a snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load retrieves a snapshot by ID.
	Load(ctx context.Context, snapshotID string) (*Snapshot, error)

	// Latest returns the highest-version snapshot for a run, or
	// ErrNotFound if the run has none.
	Latest(ctx context.Context, runID string) (*Snapshot, error)

	// List returns all snapshots for a run in ascending version order.
	List(ctx context.Context, runID string) ([]*Snapshot, error)

	// Delete removes a snapshot.
	Delete(ctx context.Context, snapshotID string) error

	// Clear removes all snapshots for a run.
	Clear(ctx context.Context, runID string) error
}

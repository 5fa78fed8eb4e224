// Package memory provides an in-memory SnapshotStore, used by tests and
// ephemeral runs that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gasl-lang/gasl/store"
)

// MemorySnapshotStore keeps snapshots in process memory.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*store.Snapshot // by snapshot ID
	runs      map[string][]string        // run ID -> snapshot IDs in save order
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]*store.Snapshot),
		runs:      make(map[string][]string),
	}
}

// Save stores a snapshot.
func (s *MemorySnapshotStore) Save(_ context.Context, snapshot *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snapshot.ID]; !exists {
		s.runs[snapshot.RunID] = append(s.runs[snapshot.RunID], snapshot.ID)
	}
	copied := *snapshot
	s.snapshots[snapshot.ID] = &copied
	return nil
}

// Load retrieves a snapshot by ID.
func (s *MemorySnapshotStore) Load(_ context.Context, snapshotID string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[snapshotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *snapshot
	return &copied, nil
}

// Latest returns the highest-version snapshot for a run.
func (s *MemorySnapshotStore) Latest(_ context.Context, runID string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *store.Snapshot
	for _, id := range s.runs[runID] {
		snapshot := s.snapshots[id]
		if latest == nil || snapshot.Version > latest.Version {
			latest = snapshot
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

// List returns all snapshots for a run in ascending version order.
func (s *MemorySnapshotStore) List(_ context.Context, runID string) ([]*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.runs[runID]
	snapshots := make([]*store.Snapshot, 0, len(ids))
	for _, id := range ids {
		copied := *s.snapshots[id]
		snapshots = append(snapshots, &copied)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Version < snapshots[j].Version
	})
	return snapshots, nil
}

// Delete removes a snapshot.
func (s *MemorySnapshotStore) Delete(_ context.Context, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[snapshotID]
	if !ok {
		return nil
	}
	delete(s.snapshots, snapshotID)

	ids := s.runs[snapshot.RunID]
	for i, id := range ids {
		if id == snapshotID {
			s.runs[snapshot.RunID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all snapshots for a run.
func (s *MemorySnapshotStore) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.runs[runID] {
		delete(s.snapshots, id)
	}
	delete(s.runs, runID)
	return nil
}

var _ store.SnapshotStore = (*MemorySnapshotStore)(nil)

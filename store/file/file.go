// Package file provides a SnapshotStore backed by JSON files on disk,
// one file per snapshot, grouped in per-run directories.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gasl-lang/gasl/store"
)

// FileSnapshotStore persists snapshots under a root directory:
// <root>/<run_id>/<snapshot_id>.json. Writes go through a temp file and
// rename so a crash mid-write never leaves a torn snapshot behind.
type FileSnapshotStore struct {
	root string
}

// NewFileSnapshotStore creates a file store rooted at the given directory,
// creating it if necessary.
func NewFileSnapshotStore(root string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create snapshot directory: %w", err)
	}
	return &FileSnapshotStore{root: root}, nil
}

func (s *FileSnapshotStore) runDir(runID string) string {
	return filepath.Join(s.root, sanitize(runID))
}

func (s *FileSnapshotStore) snapshotPath(runID, snapshotID string) string {
	return filepath.Join(s.runDir(runID), sanitize(snapshotID)+".json")
}

// Save stores a snapshot atomically.
func (s *FileSnapshotStore) Save(_ context.Context, snapshot *store.Snapshot) error {
	dir := s.runDir(snapshot.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := s.snapshotPath(snapshot.RunID, snapshot.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID, scanning run directories.
func (s *FileSnapshotStore) Load(_ context.Context, snapshotID string) (*store.Snapshot, error) {
	runs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot root: %w", err)
	}
	name := sanitize(snapshotID) + ".json"
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		path := filepath.Join(s.root, run.Name(), name)
		if _, err := os.Stat(path); err == nil {
			return s.readSnapshot(path)
		}
	}
	return nil, store.ErrNotFound
}

// Latest returns the highest-version snapshot for a run.
func (s *FileSnapshotStore) Latest(ctx context.Context, runID string) (*store.Snapshot, error) {
	snapshots, err := s.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, store.ErrNotFound
	}
	return snapshots[len(snapshots)-1], nil
}

// List returns all snapshots for a run in ascending version order.
func (s *FileSnapshotStore) List(_ context.Context, runID string) ([]*store.Snapshot, error) {
	dir := s.runDir(runID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	var snapshots []*store.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snapshot, err := s.readSnapshot(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Version < snapshots[j].Version
	})
	return snapshots, nil
}

// Delete removes a snapshot.
func (s *FileSnapshotStore) Delete(ctx context.Context, snapshotID string) error {
	snapshot, err := s.Load(ctx, snapshotID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return err
	}
	return os.Remove(s.snapshotPath(snapshot.RunID, snapshot.ID))
}

// Clear removes all snapshots for a run.
func (s *FileSnapshotStore) Clear(_ context.Context, runID string) error {
	err := os.RemoveAll(s.runDir(runID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear run snapshots: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) readSnapshot(path string) (*store.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snapshot store.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

// sanitize keeps IDs safe to use as file names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

var _ store.SnapshotStore = (*FileSnapshotStore)(nil)

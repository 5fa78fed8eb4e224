package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/store/memory"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	s, err := NewStateStore(context.Background(), memory.NewMemorySnapshotStore(), "run-1", "which nodes fan out the most?")
	require.NoError(t, err)
	return s
}

func TestStateStore_DeclareAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "suspects", TypeList, "candidate nodes"))
	assert.True(t, s.Has("suspects"))

	v, err := s.Get("suspects")
	require.NoError(t, err)
	assert.Equal(t, TypeList, v.Type)
	assert.Equal(t, 0, v.Len())

	err = s.Declare(ctx, "suspects", TypeList, "again")
	var dup *DuplicateVariableError
	assert.ErrorAs(t, err, &dup)

	_, err = s.Get("missing")
	var unknown *UnknownVariableError
	assert.ErrorAs(t, err, &unknown)
}

func TestStateStore_CopyOnWriteIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "items", TypeList, ""))
	before, err := s.Document()
	require.NoError(t, err)

	require.NoError(t, s.Merge(ctx, "items", []any{
		map[string]any{"id": "a"},
	}, "", nil))

	// The document copied out before the merge must not see the new item.
	assert.Equal(t, 0, before.Variables["items"].Len())

	after, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, after.Variables["items"].Len())
	assert.Equal(t, before.Version+1, after.Version)
}

func TestStateStore_FailedMutationLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "count", TypeCounter, ""))
	v0 := s.Version()

	err := s.Merge(ctx, "count", "not a number", "", nil)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)

	assert.Equal(t, v0, s.Version())
}

func TestStateStore_MergeDedupeByIdentityKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "nodes", TypeList, ""))
	first := []any{
		map[string]any{"id": "n1", "degree": 3},
		map[string]any{"id": "n2", "degree": 5},
	}
	require.NoError(t, s.Merge(ctx, "nodes", first, "id", nil))

	second := []any{
		map[string]any{"id": "n2", "degree": 5},
		map[string]any{"id": "n3", "degree": 1},
	}
	require.NoError(t, s.Merge(ctx, "nodes", second, "id", nil))

	v, err := s.Get("nodes")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
}

func TestStateStore_CounterAndDict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "seen", TypeCounter, ""))
	require.NoError(t, s.Increment(ctx, "seen", 2, nil))
	require.NoError(t, s.Increment(ctx, "seen", 3, nil))
	v, err := s.Get("seen")
	require.NoError(t, err)
	assert.Equal(t, float64(5), v.Value)

	require.NoError(t, s.Declare(ctx, "stats", TypeDict, ""))
	require.NoError(t, s.Merge(ctx, "stats", map[string]any{"max": 9}, "", nil))
	require.NoError(t, s.Merge(ctx, "stats", map[string]any{"max": 12, "min": 1}, "", nil))
	v, err = s.Get("stats")
	require.NoError(t, err)
	assert.Equal(t, float64(12), toFloat(t, v.Entries["max"]))
	assert.Equal(t, float64(1), toFloat(t, v.Entries["min"]))
}

func TestVariable_MergeIntoClonedEmptyDict(t *testing.T) {
	doc := NewDocument("run", "")
	doc.Variables["stats"] = NewVariable("stats", TypeDict, "")

	// An empty Entries map is dropped by the JSON round trip, so the clone
	// carries a nil map; merging into it must still work.
	clone, err := doc.Clone()
	require.NoError(t, err)
	v := clone.Variables["stats"]
	require.Nil(t, v.Entries)

	require.NoError(t, v.Merge(map[string]any{"max": float64(9)}, ""))
	assert.Equal(t, float64(9), toFloat(t, v.Entries["max"]))
}

func toFloat(t *testing.T, value any) float64 {
	t.Helper()
	switch n := value.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	t.Fatalf("not numeric: %v", value)
	return 0
}

func TestStateStore_AppendHistoryIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, status := range []string{"success", "empty"} {
		require.NoError(t, s.AppendHistory(ctx, ExecutionRecord{
			StepID:     "step-" + string(rune('1'+i)),
			Command:    "COUNT items AS n",
			Status:     status,
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
		}))
	}

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "empty", history[1].Status)

	// Mutating the returned slice must not affect the store.
	history[0].Status = "tampered"
	assert.Equal(t, "success", s.History()[0].Status)

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Len(t, doc.Replay.Commands, 2)
}

func TestStateStore_AddFieldMetaSuffixesOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "nodes", TypeList, ""))

	name, err := s.AddFieldMeta(ctx, "nodes", "risk", FieldMeta{Source: "CLASSIFY"})
	require.NoError(t, err)
	assert.Equal(t, "risk", name)

	name, err = s.AddFieldMeta(ctx, "nodes", "risk", FieldMeta{Source: "ANALYZE"})
	require.NoError(t, err)
	assert.Equal(t, "risk_1", name)

	name, err = s.AddFieldMeta(ctx, "nodes", "risk", FieldMeta{Source: "ANALYZE"})
	require.NoError(t, err)
	assert.Equal(t, "risk_2", name)

	v, err := s.Get("nodes")
	require.NoError(t, err)
	assert.Len(t, v.Fields, 3)
}

func TestStateStore_ResumeFromLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewMemorySnapshotStore()

	s, err := NewStateStore(ctx, snapshots, "run-9", "query")
	require.NoError(t, err)
	require.NoError(t, s.Declare(ctx, "hits", TypeCounter, ""))
	require.NoError(t, s.Increment(ctx, "hits", 7, nil))

	resumed, err := ResumeStateStore(ctx, snapshots, "run-9")
	require.NoError(t, err)
	assert.Equal(t, s.Version(), resumed.Version())
	v, err := resumed.Get("hits")
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.Value)
}

func TestStateStore_SummaryIsBounded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Declare(ctx, "nodes", TypeList, ""))
	items := make([]any, 100)
	for i := range items {
		items[i] = map[string]any{"id": i}
	}
	require.NoError(t, s.Merge(ctx, "nodes", items, "", nil))

	summary := s.Summary()
	assert.Contains(t, summary, "nodes (LIST, 100 items)")
	assert.Contains(t, summary, "...")
	assert.Less(t, len(summary), 2000)
}

func TestContextStore_ShadowsAndClears(t *testing.T) {
	c := NewContextStore()

	_, err := c.Declare("tmp", TypeList, "")
	require.NoError(t, err)
	_, err = c.Declare("tmp", TypeList, "")
	var dup *DuplicateVariableError
	assert.ErrorAs(t, err, &dup)

	c.Bind(NewList("tmp", []any{"x"}))
	v, err := c.Get("tmp")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	assert.Equal(t, []string{"tmp"}, c.Names())
	c.Clear()
	assert.False(t, c.Has("tmp"))
}

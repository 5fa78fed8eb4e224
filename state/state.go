package state

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gasl-lang/gasl/store"
)

const (
	summaryMaxItems     = 5
	summaryMaxValueLen  = 200
	summaryHistoryTail  = 10
	summaryMaxVariables = 25
)

// StateStore is the durable, versioned variable namespace of a run. All
// mutations are copy-on-write: the current document is cloned, the change
// is applied to the clone, the version is bumped and a snapshot is
// persisted before the clone becomes the published document. A failed
// persist leaves the published document untouched.
type StateStore struct {
	mu        sync.RWMutex
	doc       *Document
	snapshots store.SnapshotStore
}

// NewStateStore creates a fresh run document and persists its initial
// snapshot.
func NewStateStore(ctx context.Context, snapshots store.SnapshotStore, runID, query string) (*StateStore, error) {
	s := &StateStore{
		doc:       NewDocument(runID, query),
		snapshots: snapshots,
	}
	if err := s.persist(ctx, s.doc); err != nil {
		return nil, err
	}
	return s, nil
}

// ResumeStateStore loads the latest snapshot of an existing run.
func ResumeStateStore(ctx context.Context, snapshots store.SnapshotStore, runID string) (*StateStore, error) {
	snapshot, err := snapshots.Latest(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("resume run %s: %w", runID, err)
	}
	doc, err := DocumentFromSnapshot(snapshot.State)
	if err != nil {
		return nil, err
	}
	return &StateStore{doc: doc, snapshots: snapshots}, nil
}

// RunID returns the run this store belongs to.
func (s *StateStore) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.RunID
}

// Version returns the current document version.
func (s *StateStore) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Version
}

// Document returns a deep copy of the current document for inspection.
func (s *StateStore) Document() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Get returns the named state variable. Callers must treat the result as
// read-only; writes go through the mutation methods.
func (s *StateStore) Get(name string) (*Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.doc.Variables[name]
	if !ok {
		return nil, &UnknownVariableError{Name: name}
	}
	return v, nil
}

// Has reports whether a state variable exists.
func (s *StateStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doc.Variables[name]
	return ok
}

// Names returns the declared variable names in sorted order.
func (s *StateStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.doc.Variables))
	for name := range s.doc.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mutate runs fn against a clone of the current document, then persists
// and publishes the clone. fn returning an error aborts with no change.
func (s *StateStore) mutate(ctx context.Context, fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.doc.Clone()
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	next.Version = s.doc.Version + 1
	next.UpdatedAt = time.Now().UTC()
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *StateStore) persist(ctx context.Context, doc *Document) error {
	err := s.snapshots.Save(ctx, &store.Snapshot{
		ID:        uuid.NewString(),
		RunID:     doc.RunID,
		Version:   doc.Version,
		State:     doc,
		Timestamp: doc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("persist state v%d: %w", doc.Version, err)
	}
	return nil
}

// Declare creates a new state variable, failing if the name exists.
func (s *StateStore) Declare(ctx context.Context, name string, typ VarType, description string) error {
	return s.mutate(ctx, func(doc *Document) error {
		if _, exists := doc.Variables[name]; exists {
			return &DuplicateVariableError{Name: name}
		}
		doc.Variables[name] = NewVariable(name, typ, description)
		return nil
	})
}

// Merge combines a value into an existing variable, de-duplicating LIST
// items by identityKey when one is given.
func (s *StateStore) Merge(ctx context.Context, name string, value any, identityKey string, prov *Provenance) error {
	return s.mutate(ctx, func(doc *Document) error {
		v, ok := doc.Variables[name]
		if !ok {
			return &UnknownVariableError{Name: name}
		}
		if err := v.Merge(value, identityKey); err != nil {
			return err
		}
		if prov != nil {
			v.Provenance = append(v.Provenance, *prov)
		}
		return nil
	})
}

// Replace swaps an existing variable's full value.
func (s *StateStore) Replace(ctx context.Context, name string, value any, prov *Provenance) error {
	return s.mutate(ctx, func(doc *Document) error {
		v, ok := doc.Variables[name]
		if !ok {
			return &UnknownVariableError{Name: name}
		}
		if err := v.Replace(value); err != nil {
			return err
		}
		if prov != nil {
			v.Provenance = append(v.Provenance, *prov)
		}
		return nil
	})
}

// Append adds items to an existing LIST variable.
func (s *StateStore) Append(ctx context.Context, name string, items []any, prov *Provenance) error {
	return s.mutate(ctx, func(doc *Document) error {
		v, ok := doc.Variables[name]
		if !ok {
			return &UnknownVariableError{Name: name}
		}
		if err := v.Append(items...); err != nil {
			return err
		}
		if prov != nil {
			v.Provenance = append(v.Provenance, *prov)
		}
		return nil
	})
}

// Increment adds a delta to an existing COUNTER variable.
func (s *StateStore) Increment(ctx context.Context, name string, delta float64, prov *Provenance) error {
	return s.mutate(ctx, func(doc *Document) error {
		v, ok := doc.Variables[name]
		if !ok {
			return &UnknownVariableError{Name: name}
		}
		if err := v.Increment(delta); err != nil {
			return err
		}
		if prov != nil {
			v.Provenance = append(v.Provenance, *prov)
		}
		return nil
	})
}

// AddFieldMeta registers field metadata on a variable. A name collision
// with an existing field gets a deterministic numeric suffix (_1, _2, ...)
// so no metadata is ever silently overwritten. The final field name is
// returned.
func (s *StateStore) AddFieldMeta(ctx context.Context, varName, field string, meta FieldMeta) (string, error) {
	finalName := field
	err := s.mutate(ctx, func(doc *Document) error {
		v, ok := doc.Variables[varName]
		if !ok {
			return &UnknownVariableError{Name: varName}
		}
		if v.Fields == nil {
			v.Fields = make(map[string]FieldMeta)
		}
		finalName = field
		for n := 1; ; n++ {
			if _, exists := v.Fields[finalName]; !exists {
				break
			}
			finalName = fmt.Sprintf("%s_%d", field, n)
		}
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = time.Now().UTC()
		}
		v.Fields[finalName] = meta
		return nil
	})
	if err != nil {
		return "", err
	}
	return finalName, nil
}

// AppendHistory appends an execution record. Commands that actually ran
// to a usable result also go into the replay block; failed and cancelled
// steps are history-only, so a replay re-executes just the steps that
// shaped the state.
func (s *StateStore) AppendHistory(ctx context.Context, record ExecutionRecord) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.History = append(doc.History, record)
		switch record.Status {
		case "success", "partial", "empty":
			if record.Command != "" {
				doc.Replay.Commands = append(doc.Replay.Commands, record.Command)
			}
		}
		return nil
	})
}

// SetQuery records the natural-language query the run is answering.
func (s *StateStore) SetQuery(ctx context.Context, query string) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.Query = query
		return nil
	})
}

// SetConfig stores the run configuration and mirrors it into the replay
// block.
func (s *StateStore) SetConfig(ctx context.Context, cfg map[string]any) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.Config = cfg
		doc.Replay.Config = cfg
		return nil
	})
}

// SetValidationHint stores the latest evaluator hint verbatim.
func (s *StateStore) SetValidationHint(ctx context.Context, hint string) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.ValidationHint = hint
		return nil
	})
}

// AddStrategyInsight appends one strategic observation for the planner.
func (s *StateStore) AddStrategyInsight(ctx context.Context, insight string) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.StrategyInsights = append(doc.StrategyInsights, insight)
		return nil
	})
}

// History returns a copy of the execution history.
func (s *StateStore) History() []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExecutionRecord, len(s.doc.History))
	copy(out, s.doc.History)
	return out
}

// Summary renders a bounded, human-readable view of the state for prompt
// building. Long values are truncated and lists show at most a handful of
// sample items, so the summary stays small no matter how large the state
// grows.
func (s *StateStore) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "state v%d, %d variable(s)\n", s.doc.Version, len(s.doc.Variables))

	names := make([]string, 0, len(s.doc.Variables))
	for name := range s.doc.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > summaryMaxVariables {
		names = names[:summaryMaxVariables]
	}

	for _, name := range names {
		v := s.doc.Variables[name]
		switch v.Type {
		case TypeList:
			fmt.Fprintf(&b, "- %s (LIST, %d items)", name, len(v.Items))
			if len(v.Items) > 0 {
				fmt.Fprintf(&b, ": %s", truncate(sampleItems(v.Items), summaryMaxValueLen))
			}
			b.WriteString("\n")
		case TypeDict:
			fmt.Fprintf(&b, "- %s (DICT, %d keys): %s\n", name, len(v.Entries),
				truncate(fmt.Sprintf("%v", v.Entries), summaryMaxValueLen))
		case TypeCounter:
			fmt.Fprintf(&b, "- %s (COUNTER): %g\n", name, v.Value)
		}
		if len(v.Fields) > 0 {
			fields := make([]string, 0, len(v.Fields))
			for f := range v.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			fmt.Fprintf(&b, "  fields: %s\n", strings.Join(fields, ", "))
		}
	}

	if len(s.doc.History) > 0 {
		tail := s.doc.History
		if len(tail) > summaryHistoryTail {
			tail = tail[len(tail)-summaryHistoryTail:]
		}
		fmt.Fprintf(&b, "recent history (%d of %d):\n", len(tail), len(s.doc.History))
		for _, rec := range tail {
			fmt.Fprintf(&b, "- [%s] %s (count=%d)\n", rec.Status, truncate(rec.Command, summaryMaxValueLen), rec.Count)
		}
	}
	if s.doc.ValidationHint != "" {
		fmt.Fprintf(&b, "validation hint: %s\n", truncate(s.doc.ValidationHint, summaryMaxValueLen))
	}
	for _, insight := range s.doc.StrategyInsights {
		fmt.Fprintf(&b, "insight: %s\n", truncate(insight, summaryMaxValueLen))
	}
	return b.String()
}

func sampleItems(items []any) string {
	n := len(items)
	if n > summaryMaxItems {
		n = summaryMaxItems
	}
	parts := make([]string, 0, n)
	for _, item := range items[:n] {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	if len(items) > summaryMaxItems {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionRecord is one append-only history entry: a command, its outcome
// and timing. Records are never rewritten once appended.
type ExecutionRecord struct {
	StepID     string    `json:"step_id"`
	PlanID     string    `json:"plan_id,omitempty"`
	Command    string    `json:"command"`
	Why        string    `json:"why,omitempty"`
	Status     string    `json:"status"`
	Count      int       `json:"count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ReplayInfo accumulates the information needed to re-run an analysis
// deterministically: every executed command in order, plus the run config.
type ReplayInfo struct {
	Commands []string       `json:"commands"`
	Config   map[string]any `json:"config,omitempty"`
}

// Document is the full durable state of one analysis run. Every mutation
// goes through the StateStore, which clones the document, applies the
// change, bumps Version and persists a snapshot before publishing.
type Document struct {
	RunID     string    `json:"run_id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Query  string         `json:"query,omitempty"`
	Config map[string]any `json:"config,omitempty"`

	Variables map[string]*Variable `json:"variables"`
	History   []ExecutionRecord    `json:"history"`
	Replay    ReplayInfo           `json:"replay"`

	ValidationHint   string   `json:"validation_hint,omitempty"`
	StrategyInsights []string `json:"strategy_insights,omitempty"`
}

// NewDocument creates the version-0 document for a fresh run.
func NewDocument(runID, query string) *Document {
	now := time.Now().UTC()
	return &Document{
		RunID:     runID,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
		Query:     query,
		Variables: make(map[string]*Variable),
		History:   []ExecutionRecord{},
		Replay:    ReplayInfo{Commands: []string{}},
	}
}

// Clone deep-copies the document via a JSON round trip. Snapshots and
// readers must never observe in-place mutation of a published document.
func (d *Document) Clone() (*Document, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone state document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone state document: %w", err)
	}
	if out.Variables == nil {
		out.Variables = make(map[string]*Variable)
	}
	return &out, nil
}

// DocumentFromSnapshot rebuilds a Document out of a snapshot's State
// payload, which a backend may hand back as a decoded map.
func DocumentFromSnapshot(state any) (*Document, error) {
	if doc, ok := state.(*Document); ok {
		return doc.Clone()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	if doc.Variables == nil {
		doc.Variables = make(map[string]*Variable)
	}
	return &doc, nil
}

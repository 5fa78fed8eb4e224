package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/llm"
)

// PlanConfig tunes how the executor reacts to non-success step results.
type PlanConfig struct {
	// StopOnError aborts the remainder of the plan when a step fails.
	StopOnError bool `json:"stop_on_error"`
	// ContinueOnEmpty keeps executing after a step returns no data.
	ContinueOnEmpty bool `json:"continue_on_empty"`
}

// Plan is one planning-phase proposal: a short rationale plus an ordered
// command list.
type Plan struct {
	ID       string     `json:"id"`
	Why      string     `json:"why"`
	Commands []string   `json:"commands"`
	Config   PlanConfig `json:"config"`
}

// Validate parses every command up front so a malformed plan is rejected
// before any step runs.
func (p *Plan) Validate() ([]*command.Command, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("plan has no id")
	}
	if len(p.Commands) == 0 {
		return nil, fmt.Errorf("plan %s has no commands", p.ID)
	}
	cmds := make([]*command.Command, len(p.Commands))
	for i, raw := range p.Commands {
		cmd, err := command.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("plan %s command %d: %w", p.ID, i+1, err)
		}
		cmds[i] = cmd
	}
	return cmds, nil
}

// Decision is the evaluation-phase outcome.
type Decision string

const (
	DecisionContinue  Decision = "continue"  // plan next iteration from current state
	DecisionRefine    Decision = "refine"    // same approach, adjusted commands
	DecisionPivot     Decision = "pivot"     // abandon the approach, try another
	DecisionTerminate Decision = "terminate" // question answered or unanswerable
)

// ParseDecision validates an LLM-supplied decision string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionContinue, DecisionRefine, DecisionPivot, DecisionTerminate:
		return d, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// Evaluation is the evaluation-phase response: what to do next and, on
// terminate, the answer.
type Evaluation struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	Answer   string   `json:"answer,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// decodePlan parses a planning response, tolerating code fences and prose
// around the JSON object.
func decodePlan(raw string) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &p); err != nil {
		return nil, &llm.SchemaMismatchError{Raw: raw, Err: err}
	}
	return &p, nil
}

// decodeEvaluation parses an evaluation response and validates the
// decision value.
func decodeEvaluation(raw string) (*Evaluation, error) {
	var ev Evaluation
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &ev); err != nil {
		return nil, &llm.SchemaMismatchError{Raw: raw, Err: err}
	}
	d, err := ParseDecision(string(ev.Decision))
	if err != nil {
		return nil, &llm.SchemaMismatchError{Raw: raw, Err: err}
	}
	ev.Decision = d
	return &ev, nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gasl-lang/gasl/adapter"
	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/log"
	"github.com/gasl-lang/gasl/state"
)

// Termination classifies how a run ended.
type Termination string

const (
	TerminationClean  Termination = "clean"  // the evaluator decided the question is answered
	TerminationForced Termination = "forced" // iteration budget exhausted, best-effort answer
	TerminationFailed Termination = "failed" // planning or evaluation could not proceed
)

// RunResult is the outcome of a full analysis run.
type RunResult struct {
	Answer       string
	Termination  Termination
	Iterations   int
	FinalVersion int
}

// ExecutorConfig tunes the outer loop.
type ExecutorConfig struct {
	MaxIterations int // planning/execution/evaluation cycles before a forced stop
	MaxRetries    int // re-asks per LLM phase on malformed replies
}

// DefaultExecutorConfig returns the loop bounds used when the caller
// supplies none.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{MaxIterations: 10, MaxRetries: 2}
}

// Executor drives the iterative loop: ask the model for a plan, run its
// commands through the dispatcher, ask the model to evaluate the results,
// and repeat until it terminates or the iteration budget runs out.
type Executor struct {
	dispatcher *Dispatcher
	cfg        ExecutorConfig
	log        log.Logger
}

// NewExecutor wires an executor over a dispatcher.
func NewExecutor(d *Dispatcher, cfg ExecutorConfig) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultExecutorConfig().MaxIterations
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Executor{dispatcher: d, cfg: cfg, log: d.env.Log}
}

// planOutcome carries one executed plan's records into evaluation.
type planOutcome struct {
	plan    *Plan
	records []state.ExecutionRecord
	aborted bool // an ASSERT failed, or stop_on_error cut the plan short
}

// Run answers query by iterating plan, execute, evaluate until the
// evaluator terminates or the iteration budget runs out.
func (e *Executor) Run(ctx context.Context, query string) (*RunResult, error) {
	env := e.dispatcher.env
	if err := env.State.SetQuery(ctx, query); err != nil {
		return nil, err
	}

	hint := ""
	for iteration := 1; iteration <= e.cfg.MaxIterations; iteration++ {
		e.log.Info("iteration %d/%d: planning", iteration, e.cfg.MaxIterations)

		plan, cmds, err := e.plan(ctx, query, hint)
		if err != nil {
			e.log.Error("planning failed: %v", err)
			return &RunResult{
				Termination:  TerminationFailed,
				Iterations:   iteration,
				FinalVersion: env.State.Version(),
			}, err
		}
		e.log.Info("plan %s (%d commands): %s", plan.ID, len(plan.Commands), plan.Why)

		// The context is plan-scoped; only UPDATE/DECLARE promote results
		// into durable state across plans.
		env.Context.Clear()
		outcome := e.executePlan(ctx, plan, cmds, true)

		ev, err := e.evaluate(ctx, query, outcome)
		if err != nil {
			e.log.Error("evaluation failed: %v", err)
			return &RunResult{
				Termination:  TerminationFailed,
				Iterations:   iteration,
				FinalVersion: env.State.Version(),
			}, err
		}
		e.log.Info("decision: %s (%s)", ev.Decision, ev.Reason)

		if ev.Hint != "" {
			if err := env.State.SetValidationHint(ctx, ev.Hint); err != nil {
				return nil, err
			}
			hint = ev.Hint
		}
		if ev.Decision == DecisionPivot && ev.Reason != "" {
			if err := env.State.AddStrategyInsight(ctx, ev.Reason); err != nil {
				return nil, err
			}
		}
		if ev.Decision == DecisionTerminate {
			return &RunResult{
				Answer:       ev.Answer,
				Termination:  TerminationClean,
				Iterations:   iteration,
				FinalVersion: env.State.Version(),
			}, nil
		}
	}

	answer, err := env.LLM.Generate(ctx, planSystemPrompt,
		buildForcedAnswerPrompt(query, env.State.Summary()))
	if err != nil {
		answer = ""
	}
	return &RunResult{
		Answer:       answer,
		Termination:  TerminationForced,
		Iterations:   e.cfg.MaxIterations,
		FinalVersion: env.State.Version(),
	}, nil
}

// Replay re-executes a run's recorded command sequence against the current
// environment without appending to history, rebuilding equivalent context
// and state from the same inputs.
func (e *Executor) Replay(ctx context.Context, commands []string) error {
	plan := &Plan{
		ID:       "replay",
		Why:      "re-execute recorded commands",
		Commands: commands,
		Config:   PlanConfig{StopOnError: true, ContinueOnEmpty: true},
	}
	cmds, err := plan.Validate()
	if err != nil {
		return err
	}
	outcome := e.executePlan(ctx, plan, cmds, false)
	for _, rec := range outcome.records {
		if Status(rec.Status).Failed() {
			return fmt.Errorf("replay step %s: %s", rec.Command, rec.Error)
		}
	}
	return nil
}

// plan asks the model for the next command batch, re-asking on malformed
// or unparsable replies up to the retry budget.
func (e *Executor) plan(ctx context.Context, query, hint string) (*Plan, []*command.Command, error) {
	env := e.dispatcher.env

	var schema *adapter.Schema
	if s, err := env.Graph.Schema(ctx); err == nil {
		schema = s
	}

	failureNote := ""
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		prompt := buildPlanPrompt(query, env.State.Summary(), schema, env.State.History(), hint, failureNote)
		reply, err := env.LLM.Generate(ctx, planSystemPrompt, prompt)
		if err != nil {
			return nil, nil, err
		}

		plan, err := decodePlan(reply)
		if err == nil {
			var cmds []*command.Command
			cmds, err = plan.Validate()
			if err == nil {
				return plan, cmds, nil
			}
		}
		// Malformed or unparsable plans get re-asked with the error as
		// feedback, up to the retry budget.
		lastErr = err
		failureNote = err.Error()
	}
	return nil, nil, fmt.Errorf("planning exhausted %d retries: %w", e.cfg.MaxRetries, lastErr)
}

// evaluate asks the model what to do after a plan ran, with one re-ask on
// a malformed reply.
func (e *Executor) evaluate(ctx context.Context, query string, outcome *planOutcome) (*Evaluation, error) {
	env := e.dispatcher.env

	failureNote := ""
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		prompt := buildEvalPrompt(query, env.State.Summary(), outcome.records, failureNote)
		reply, err := env.LLM.Generate(ctx, planSystemPrompt, prompt)
		if err != nil {
			return nil, err
		}
		ev, err := decodeEvaluation(reply)
		if err == nil {
			if ev.Decision == DecisionTerminate && ev.Answer == "" {
				failureNote = "terminate requires an answer"
				lastErr = fmt.Errorf("terminate decision without an answer")
				continue
			}
			return ev, nil
		}
		lastErr = err
		failureNote = err.Error()
	}
	return nil, fmt.Errorf("evaluation exhausted %d retries: %w", e.cfg.MaxRetries, lastErr)
}

// executePlan runs the plan's commands in order, implementing the control
// verbs that depend on surrounding execution: ON reacts to the previous
// step's status, TRY/CATCH/FINALLY form a protected region, CANCEL marks
// the remaining steps cancelled. ASSERT failures abort the plan no matter
// what the config says.
func (e *Executor) executePlan(ctx context.Context, plan *Plan, cmds []*command.Command, record bool) *planOutcome {
	outcome := &planOutcome{plan: plan}

	prevStatus := StatusSuccess
	tryFailed := false
	for i := 0; i < len(cmds); i++ {
		cmd := cmds[i]

		var result ExecutionResult
		executed := true
		switch cmd.Verb {
		case command.VerbOn:
			if matchesOnStatus(cmd.On.Status, prevStatus) {
				result = e.step(ctx, plan, cmd.On.Action, record, outcome)
			} else {
				executed = false
				result = ExecutionResult{Status: prevStatus}
			}

		case command.VerbTry:
			result = e.step(ctx, plan, cmd.Wrapped, record, outcome)
			if result.Status.Failed() {
				tryFailed = true
				// Failure is contained; the plan carries on to CATCH.
				prevStatus = result.Status
				continue
			}

		case command.VerbCatch:
			if tryFailed {
				result = e.step(ctx, plan, cmd.Wrapped, record, outcome)
				tryFailed = false
			} else {
				executed = false
				result = ExecutionResult{Status: prevStatus}
			}

		case command.VerbFinally:
			result = e.step(ctx, plan, cmd.Wrapped, record, outcome)

		case command.VerbCancel:
			e.recordStep(ctx, plan, cmd, ExecutionResult{
				Status: StatusSuccess,
				Note:   fmt.Sprintf("cancelled plan %s", cmd.Cancel.PlanID),
			}, time.Now().UTC(), record, outcome)
			for _, rest := range cmds[i+1:] {
				e.recordStep(ctx, plan, rest, ExecutionResult{Status: StatusCancelled},
					time.Now().UTC(), record, outcome)
			}
			return outcome

		default:
			result = e.step(ctx, plan, cmd, record, outcome)
		}

		if executed {
			prevStatus = result.Status
		}

		if cmd.Verb == command.VerbAssert && result.Status.Failed() {
			outcome.aborted = true
			return outcome
		}
		if result.Status.Failed() && plan.Config.StopOnError && cmd.Verb != command.VerbTry {
			outcome.aborted = true
			return outcome
		}
		if result.Status == StatusEmpty && !plan.Config.ContinueOnEmpty {
			return outcome
		}
	}
	return outcome
}

// step dispatches one command and records its outcome.
func (e *Executor) step(ctx context.Context, plan *Plan, cmd *command.Command, record bool, outcome *planOutcome) ExecutionResult {
	started := time.Now().UTC()
	result := e.dispatcher.Dispatch(ctx, cmd)
	e.recordStep(ctx, plan, cmd, result, started, record, outcome)

	if result.Status.Failed() {
		e.log.Warn("[%s] %s: %v", result.Status, cmd.String(), result.Err)
	} else {
		e.log.Debug("[%s] %s (count=%d)", result.Status, cmd.String(), result.Count)
	}
	return result
}

// recordStep appends one history record; records are append-only and
// written even for steps that never ran (cancelled).
func (e *Executor) recordStep(ctx context.Context, plan *Plan, cmd *command.Command, result ExecutionResult, started time.Time, record bool, outcome *planOutcome) {
	rec := state.ExecutionRecord{
		StepID:     uuid.NewString(),
		PlanID:     plan.ID,
		Command:    cmd.String(),
		Why:        plan.Why,
		Status:     string(result.Status),
		Count:      result.Count,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Summary:    result.Note,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	outcome.records = append(outcome.records, rec)

	if record {
		if err := e.dispatcher.env.State.AppendHistory(ctx, rec); err != nil {
			e.log.Error("append history: %v", err)
		}
	}
}

// matchesOnStatus maps the three ON selectors onto result statuses. The
// error selector covers every failing status.
func matchesOnStatus(selector string, status Status) bool {
	switch selector {
	case "success":
		return status == StatusSuccess || status == StatusPartial
	case "error":
		return status.Failed()
	case "empty":
		return status == StatusEmpty
	}
	return false
}

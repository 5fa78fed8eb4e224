package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/state"
)

func planReply(id, why string, stopOnError, continueOnEmpty bool, commands ...string) string {
	reply := `{"id": "` + id + `", "why": "` + why + `", "commands": [`
	for i, c := range commands {
		if i > 0 {
			reply += ", "
		}
		reply += `"` + c + `"`
	}
	reply += `], "config": {"stop_on_error": `
	if stopOnError {
		reply += "true"
	} else {
		reply += "false"
	}
	reply += `, "continue_on_empty": `
	if continueOnEmpty {
		reply += "true"
	} else {
		reply += "false"
	}
	return reply + `}}`
}

func TestExecutor_RunTerminatesCleanly(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "count the people", true, true,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
			`COUNT people AS n`,
			`DECLARE total AS COUNTER`,
		),
		`{"decision": "terminate", "reason": "counted", "answer": "There are 3 people."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	result, err := ex.Run(context.Background(), "How many people are in the graph?")
	require.NoError(t, err)
	assert.Equal(t, TerminationClean, result.Termination)
	assert.Equal(t, "There are 3 people.", result.Answer)
	assert.Equal(t, 1, result.Iterations)

	history := env.State.History()
	require.Len(t, history, 3)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "p1", history[0].PlanID)

	doc, err := env.State.Document()
	require.NoError(t, err)
	assert.Equal(t, "How many people are in the graph?", doc.Query)
	assert.Len(t, doc.Replay.Commands, 3)
}

func TestExecutor_StopOnErrorTruncatesPlan(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "bad middle step", true, true,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
			`COUNT missing_var AS n`,
			`COUNT people AS never_runs`,
		),
		`{"decision": "terminate", "reason": "gave up", "answer": "Cannot proceed."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	// The failing step is recorded; the one after it never runs.
	history := env.State.History()
	require.Len(t, history, 2)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "binding_failure", history[1].Status)
}

func TestExecutor_AssertFailureAbortsDespiteConfig(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "assert then continue", false, true,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
			`ASSERT people COUNT > 100`,
			`COUNT people AS never_runs`,
		),
		`{"decision": "terminate", "reason": "assertion failed", "answer": "No."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	history := env.State.History()
	require.Len(t, history, 2)
	assert.Equal(t, "error", history[1].Status)
}

func TestExecutor_EmptyStopsUnlessConfigured(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "empty result ends the plan", false, false,
			`FIND nodes WHERE type = \"PLANET\" AS planets`,
			`COUNT planets AS never_runs`,
		),
		`{"decision": "terminate", "reason": "nothing found", "answer": "None."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	history := env.State.History()
	require.Len(t, history, 1)
	assert.Equal(t, "empty", history[0].Status)
}

func TestExecutor_OnEmptyRunsFallback(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "fallback on empty", false, true,
			`FIND nodes WHERE type = \"PLANET\" AS planets`,
			`ON empty DO FIND nodes WHERE type = \"PERSON\" AS planets`,
		),
		`{"decision": "terminate", "reason": "fallback worked", "answer": "Used people instead."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	v, err := env.Context.Get("planets")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
}

func TestExecutor_TryCatchContainsFailure(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "protected region", true, true,
			`TRY COUNT missing_var AS n`,
			`CATCH SET fallback_ran = 1`,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
		),
		`{"decision": "terminate", "reason": "recovered", "answer": "Recovered."}`,
	}}
	env, d := testEnv(t, model)
	require.NoError(t, env.State.Declare(context.Background(), "fallback_ran", state.TypeCounter, ""))
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	// The TRY failure did not stop the plan despite stop_on_error.
	v, err := env.Context.Get("people")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())

	fallback, err := env.State.Get("fallback_ran")
	require.NoError(t, err)
	assert.Equal(t, float64(1), fallback.Value)
}

func TestExecutor_CatchSkippedWithoutFailure(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "catch without failure", true, true,
			`TRY FIND nodes WHERE type = \"PERSON\" AS people`,
			`CATCH SET fallback_ran = 1`,
		),
		`{"decision": "terminate", "reason": "done", "answer": "Done."}`,
	}}
	env, d := testEnv(t, model)
	require.NoError(t, env.State.Declare(context.Background(), "fallback_ran", state.TypeCounter, ""))
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	fallback, err := env.State.Get("fallback_ran")
	require.NoError(t, err)
	assert.Equal(t, float64(0), fallback.Value)
}

func TestExecutor_CancelMarksRemainingSteps(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "cancel the rest", false, true,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
			`CANCEL PLAN \"p1\"`,
			`COUNT people AS never_runs`,
		),
		`{"decision": "terminate", "reason": "cancelled", "answer": "Stopped early."}`,
	}}
	env, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	history := env.State.History()
	require.Len(t, history, 3)
	assert.Equal(t, "cancelled", history[2].Status)
	assert.False(t, env.Context.Has("never_runs"))
}

func TestExecutor_RetriesMalformedPlan(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		"I think we should look at the people first.",
		planReply("p1", "second attempt parses", true, true,
			`FIND nodes WHERE type = \"PERSON\" AS people`,
		),
		`{"decision": "terminate", "reason": "done", "answer": "OK."}`,
	}}
	_, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3, MaxRetries: 2})

	result, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, TerminationClean, result.Termination)
}

func TestExecutor_ForcedTerminationAtBudget(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "first look", true, true, `FIND nodes WHERE type = \"PERSON\" AS people`),
		`{"decision": "continue", "reason": "need more"}`,
		planReply("p2", "second look", true, true, `COUNT people AS n`),
		`{"decision": "continue", "reason": "still more"}`,
		"Best effort: there are 3 people.",
	}}
	_, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 2})

	result, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, TerminationForced, result.Termination)
	assert.Equal(t, "Best effort: there are 3 people.", result.Answer)
	assert.Equal(t, 2, result.Iterations)
}

func TestExecutor_HintFeedsNextPlanningPrompt(t *testing.T) {
	model := &scriptedLLM{t: t, replies: []string{
		planReply("p1", "first look", true, true, `FIND nodes WHERE type = \"PERSON\" AS people`),
		`{"decision": "refine", "reason": "narrow it", "hint": "filter by score above 8"}`,
		planReply("p2", "narrowed", true, true, `FIND nodes WHERE score > 8 AS top`),
		`{"decision": "terminate", "reason": "done", "answer": "Ada."}`,
	}}
	_, d := testEnv(t, model)
	ex := NewExecutor(d, ExecutorConfig{MaxIterations: 3})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	// The second planning prompt (third Generate call) carries the hint.
	require.GreaterOrEqual(t, len(model.prompts), 3)
	assert.Contains(t, model.prompts[2], "filter by score above 8")
}

func TestExecutor_ReplayRebuildsContext(t *testing.T) {
	_, d := testEnv(t, nil)
	ex := NewExecutor(d, ExecutorConfig{})

	commands := []string{
		`FIND nodes WHERE type = "PERSON" AS people`,
		`COUNT people AS n`,
	}
	require.NoError(t, ex.Replay(context.Background(), commands))

	env := d.Env()
	v, err := env.Context.Get("n")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.Value)

	// Replay leaves the durable history untouched.
	assert.Empty(t, env.State.History())
}

func TestExecutor_ReplayReportsFailingStep(t *testing.T) {
	_, d := testEnv(t, nil)
	ex := NewExecutor(d, ExecutorConfig{})

	err := ex.Replay(context.Background(), []string{`COUNT missing AS n`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COUNT missing")
}

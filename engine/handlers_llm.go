package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/llm"
)

const itemSystemPrompt = "You transform graph-analysis data. " +
	"Reply with a single JSON value and nothing else."

// llmItemCall sends all items in one structured call and demands a JSON
// array with exactly one output element per input element. Anything else
// is a schema mismatch, never silently accepted.
func llmItemCall(ctx context.Context, env *Env, instruction string, items []any, out *[]any) ExecutionResult {
	payload, err := json.Marshal(items)
	if err != nil {
		return failure(fmt.Errorf("encode items: %w", err))
	}
	prompt := fmt.Sprintf("%s\n\nInput items (JSON array of %d):\n%s\n\n"+
		"Reply with a JSON array of exactly %d elements, one per input item, in the same order.",
		instruction, len(items), payload, len(items))

	if err := env.LLM.GenerateStructured(ctx, itemSystemPrompt, prompt, out); err != nil {
		var mismatch *llm.SchemaMismatchError
		if errors.As(err, &mismatch) {
			return ExecutionResult{Status: StatusSchemaMismatch, Err: mismatch}
		}
		return failure(err)
	}
	if len(*out) != len(items) {
		return ExecutionResult{
			Status: StatusSchemaMismatch,
			Err: &llm.SchemaMismatchError{
				Err: fmt.Errorf("expected %d elements, got %d", len(items), len(*out)),
			},
		}
	}
	return ExecutionResult{Status: StatusSuccess}
}

// handleProcess applies a free-text instruction to each item of the source
// variable, one output item per input item.
func handleProcess(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Process
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	if len(items) == 0 {
		return empty([]any{})
	}

	var out []any
	if r := llmItemCall(ctx, env, args.Instruction, items, &out); r.Status != StatusSuccess {
		return r
	}
	return success(out, len(out))
}

// handleClassify labels each item; the output items are the inputs with a
// "label" field attached.
func handleClassify(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Classify
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	if len(items) == 0 {
		return empty([]any{})
	}

	instruction := fmt.Sprintf("Classify each item: %s. Reply with a JSON array of label strings.", args.Instruction)
	var labels []any
	if r := llmItemCall(ctx, env, instruction, items, &labels); r.Status != StatusSuccess {
		return r
	}

	out := make([]any, len(items))
	for i, item := range items {
		labeled := cloneItem(item)
		label, ok := labels[i].(string)
		if !ok {
			return ExecutionResult{
				Status: StatusSchemaMismatch,
				Err:    &llm.SchemaMismatchError{Err: fmt.Errorf("label %d is not a string", i)},
			}
		}
		labeled["label"] = label
		out[i] = labeled
	}
	return success(out, len(out))
}

// handleAnalyze asks for one free-text insight over a bounded rendering of
// the variable.
func handleAnalyze(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Analyze
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}

	payload, err := json.Marshal(boundedValue(v.RawValue(), 50))
	if err != nil {
		return failure(fmt.Errorf("encode variable: %w", err))
	}
	prompt := fmt.Sprintf("Data (%s %s):\n%s\n\nAnalyze it for: %s\nReply with plain text.",
		v.Name, v.Type, payload, args.Analysis)

	insight, err := env.LLM.Generate(ctx, itemSystemPrompt, prompt)
	if err != nil {
		return failure(err)
	}
	return success(map[string]any{"analysis": args.Analysis, "insight": insight}, 1)
}

// handleGenerate produces free-form content from a variable.
func handleGenerate(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Generate
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}

	payload, err := json.Marshal(boundedValue(v.RawValue(), 50))
	if err != nil {
		return failure(fmt.Errorf("encode variable: %w", err))
	}
	prompt := fmt.Sprintf("Generate %s from this data:\n%s\n\nSpecification: %s",
		args.ContentType, payload, args.Spec)

	content, err := env.LLM.Generate(ctx, itemSystemPrompt, prompt)
	if err != nil {
		return failure(err)
	}
	return success(map[string]any{"content_type": args.ContentType, "content": content}, 1)
}

// boundedValue truncates list payloads before they reach a prompt.
func boundedValue(value any, maxItems int) any {
	items, ok := value.([]any)
	if !ok || len(items) <= maxItems {
		return value
	}
	return items[:maxItems]
}

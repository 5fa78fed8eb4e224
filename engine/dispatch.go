package engine

import (
	"context"
	"fmt"

	"github.com/gasl-lang/gasl/adapter"
	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/llm"
	"github.com/gasl-lang/gasl/log"
	"github.com/gasl-lang/gasl/state"
)

// Limits are the traversal safety caps. Exceeding a cap downgrades the
// result to partial with a note instead of truncating silently.
type Limits struct {
	MaxDepth          int // hard cap on GRAPHWALK depth and SUBGRAPH radius
	MaxTraversalNodes int // hard cap on nodes collected per traversal
	MaxPathLength     int // hard cap on path length for connect/paths
	MaxShowItems      int // SHOW default display bound
}

// DefaultLimits returns the caps used when the caller supplies none.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:          4,
		MaxTraversalNodes: 1000,
		MaxPathLength:     5,
		MaxShowItems:      10,
	}
}

// Env bundles the collaborators a handler may touch. Both stores are
// explicit parameters; nothing is resolved from globals.
type Env struct {
	Context *state.ContextStore
	State   *state.StateStore
	Graph   adapter.GraphAdapter
	LLM     llm.Client
	Log     log.Logger
	Limits  Limits
}

// lookup resolves a variable reference, context first, then state.
func (e *Env) lookup(name string) (*state.Variable, error) {
	if v, err := e.Context.Get(name); err == nil {
		return v, nil
	}
	if v, err := e.State.Get(name); err == nil {
		return v, nil
	}
	return nil, &BindingError{Name: name}
}

// Handler executes one verb against the environment.
type Handler func(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult

// Dispatcher routes parsed commands to their handlers through a static
// table keyed by verb. Plan-level control verbs (ON, TRY, CATCH, FINALLY,
// CANCEL) are not in the table: their semantics depend on surrounding plan
// execution, so the executor implements them and only delegates their
// inner commands here.
type Dispatcher struct {
	env      *Env
	handlers map[command.Verb]Handler
}

// NewDispatcher builds the dispatch table over env.
func NewDispatcher(env *Env) *Dispatcher {
	if env.Log == nil {
		env.Log = &log.NoOpLogger{}
	}
	if env.Limits == (Limits{}) {
		env.Limits = DefaultLimits()
	}
	d := &Dispatcher{env: env}
	d.handlers = map[command.Verb]Handler{
		command.VerbFind:    handleFind,
		command.VerbCount:   handleCount,
		command.VerbSelect:  handleSelect,
		command.VerbShow:    handleShow,
		command.VerbInspect: handleInspect,

		command.VerbProcess:  handleProcess,
		command.VerbClassify: handleClassify,
		command.VerbAnalyze:  handleAnalyze,
		command.VerbGenerate: handleGenerate,

		command.VerbDeclare:  handleDeclare,
		command.VerbUpdate:   handleUpdate,
		command.VerbSet:      handleSet,
		command.VerbAddField: handleAddField,

		command.VerbGraphWalk:    handleGraphWalk,
		command.VerbGraphConnect: handleGraphConnect,
		command.VerbSubgraph:     handleSubgraph,
		command.VerbGraphPattern: handleGraphPattern,

		command.VerbJoin:    handleJoin,
		command.VerbMerge:   handleMerge,
		command.VerbCompare: handleCompare,

		command.VerbAggregate: handleAggregate,
		command.VerbGroup:     handleGroup,
		command.VerbRank:      handleRank,

		command.VerbCreate: handleCreate,

		command.VerbRequire: handleCheck,
		command.VerbAssert:  handleCheck,
	}
	return d
}

// Env exposes the dispatcher's environment to the executor.
func (d *Dispatcher) Env() *Env { return d.env }

// Dispatch runs one command and, on a non-failing result with an output
// binding, publishes the value into the context under that name. Handler
// failures never escape as errors; they come back as statuses.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *command.Command) ExecutionResult {
	handler, ok := d.handlers[cmd.Verb]
	if !ok {
		return failure(fmt.Errorf("no handler for verb %s", cmd.Verb))
	}

	result := handler(ctx, cmd, d.env)
	if result.Status.Failed() || cmd.Output == "" {
		return result
	}

	v := variableFor(cmd.Output, result.Value)
	d.env.Context.Bind(v)
	return result
}

// variableFor wraps a handler value in a context variable of the matching
// type.
func variableFor(name string, value any) *state.Variable {
	switch val := value.(type) {
	case []any:
		return state.NewList(name, val)
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return state.NewList(name, items)
	case map[string]any:
		v := state.NewVariable(name, state.TypeDict, "")
		v.Entries = val
		return v
	case float64:
		v := state.NewVariable(name, state.TypeCounter, "")
		v.Value = val
		return v
	case int:
		v := state.NewVariable(name, state.TypeCounter, "")
		v.Value = float64(val)
		return v
	default:
		v := state.NewVariable(name, state.TypeDict, "")
		v.Entries = map[string]any{"value": value}
		return v
	}
}

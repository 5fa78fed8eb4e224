package engine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/state"
)

// handleDeclare creates a durable state variable.
func handleDeclare(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Declare
	typ, err := state.ParseVarType(args.Type)
	if err != nil {
		return failure(err)
	}
	if err := env.State.Declare(ctx, args.Name, typ, args.Description); err != nil {
		return failure(err)
	}
	return success(nil, 0)
}

// handleUpdate promotes a context variable's value into durable state.
// This and DECLARE are the primary state-mutation verbs.
func handleUpdate(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Update
	source, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	if !env.State.Has(args.Target) {
		return ExecutionResult{Status: StatusBindingFailure, Err: &BindingError{Name: args.Target}}
	}

	prov := provenanceFor(cmd.String(), map[string]any{"mode": string(args.Mode), "source": args.Source})
	switch args.Mode {
	case command.UpdateMerge:
		err = env.State.Merge(ctx, args.Target, source.RawValue(), args.Key, prov)
	case command.UpdateReplace:
		err = env.State.Replace(ctx, args.Target, source.RawValue(), prov)
	case command.UpdateAppend:
		items, itemsErr := listItems(source)
		if itemsErr != nil {
			return failure(itemsErr)
		}
		err = env.State.Append(ctx, args.Target, items, prov)
	}
	if err != nil {
		return failure(err)
	}

	target, err := env.State.Get(args.Target)
	if err != nil {
		return failure(err)
	}
	return success(nil, target.Len())
}

// handleSet replaces the full value of an existing variable. A context
// binding shadows a state variable of the same name.
func handleSet(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Set

	if env.Context.Has(args.Name) {
		v, _ := env.Context.Get(args.Name)
		if err := v.Replace(args.Value); err != nil {
			return failure(err)
		}
		return success(nil, v.Len())
	}
	if env.State.Has(args.Name) {
		prov := provenanceFor(cmd.String(), nil)
		if err := env.State.Replace(ctx, args.Name, args.Value, prov); err != nil {
			return failure(err)
		}
		return success(nil, 1)
	}
	return ExecutionResult{Status: StatusBindingFailure, Err: &BindingError{Name: args.Name}}
}

// handleAddField stamps a constant field onto every item of a LIST
// variable and records field provenance. Name collisions get a numeric
// suffix so earlier metadata is never overwritten.
func handleAddField(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.AddField

	meta := state.FieldMeta{
		Source:    cmd.String(),
		CreatedAt: time.Now().UTC(),
	}

	if env.Context.Has(args.Target) {
		v, _ := env.Context.Get(args.Target)
		if v.Type != state.TypeList {
			return failure(errors.New("ADDFIELD requires a LIST variable"))
		}
		field := args.Field
		if v.Fields == nil {
			v.Fields = make(map[string]state.FieldMeta)
		}
		for n := 1; ; n++ {
			if _, exists := v.Fields[field]; !exists {
				break
			}
			field = numberedField(args.Field, n)
		}
		v.Fields[field] = meta
		for i, item := range v.Items {
			m := cloneItem(item)
			m[field] = args.Value
			v.Items[i] = m
		}
		return success(nil, len(v.Items))
	}

	if env.State.Has(args.Target) {
		v, err := env.State.Get(args.Target)
		if err != nil {
			return failure(err)
		}
		if v.Type != state.TypeList {
			return failure(errors.New("ADDFIELD requires a LIST variable"))
		}
		field, err := env.State.AddFieldMeta(ctx, args.Target, args.Field, meta)
		if err != nil {
			return failure(err)
		}
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			m := cloneItem(item)
			m[field] = args.Value
			items[i] = m
		}
		prov := provenanceFor(cmd.String(), map[string]any{"field": field})
		if err := env.State.Replace(ctx, args.Target, items, prov); err != nil {
			return failure(err)
		}
		return success(nil, len(items))
	}

	return ExecutionResult{Status: StatusBindingFailure, Err: &BindingError{Name: args.Target}}
}

func numberedField(base string, n int) string {
	return base + "_" + strconv.Itoa(n)
}

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/gasl-lang/gasl/command"
)

// handleJoin inner-joins two LIST variables on a key pair. Rows combine
// both sides; on field collisions the left side wins.
func handleJoin(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Join
	left, err := env.lookup(args.Left)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	right, err := env.lookup(args.Right)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	leftItems, err := listItems(left)
	if err != nil {
		return failure(err)
	}
	rightItems, err := listItems(right)
	if err != nil {
		return failure(err)
	}

	byKey := make(map[string][]map[string]any)
	for _, item := range rightItems {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		val, ok := m[args.RightKey]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", val)
		byKey[key] = append(byKey[key], m)
	}

	var out []any
	for _, item := range leftItems {
		lm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		val, ok := lm[args.LeftKey]
		if !ok {
			continue
		}
		for _, rm := range byKey[fmt.Sprintf("%v", val)] {
			row := make(map[string]any, len(lm)+len(rm))
			for k, v := range rm {
				row[k] = v
			}
			for k, v := range lm {
				row[k] = v
			}
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	return success(out, len(out))
}

// handleMerge concatenates two or more LIST variables, deduplicating by
// the identity key when one is given.
func handleMerge(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Merge

	var out []any
	seen := make(map[string]bool)
	for _, name := range args.Sources {
		v, err := env.lookup(name)
		if err != nil {
			return ExecutionResult{Status: StatusBindingFailure, Err: err}
		}
		items, err := listItems(v)
		if err != nil {
			return failure(err)
		}
		for _, item := range items {
			if args.Key != "" {
				if m, ok := item.(map[string]any); ok {
					if val, ok := m[args.Key]; ok {
						key := fmt.Sprintf("%v", val)
						if seen[key] {
							continue
						}
						seen[key] = true
					}
				}
			}
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	return success(out, len(out))
}

// handleCompare diffs two LIST variables on one field, partitioning the
// observed values into in_both, only_left and only_right.
func handleCompare(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Compare
	left, err := env.lookup(args.Left)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	right, err := env.lookup(args.Right)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	leftItems, err := listItems(left)
	if err != nil {
		return failure(err)
	}
	rightItems, err := listItems(right)
	if err != nil {
		return failure(err)
	}

	leftVals := fieldValueSet(leftItems, args.Field)
	rightVals := fieldValueSet(rightItems, args.Field)

	var out []any
	for _, val := range sortedKeys(leftVals) {
		where := "only_left"
		if rightVals[val] {
			where = "in_both"
		}
		out = append(out, map[string]any{"value": val, "where": where})
	}
	for _, val := range sortedKeys(rightVals) {
		if !leftVals[val] {
			out = append(out, map[string]any{"value": val, "where": "only_right"})
		}
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	return success(out, len(out))
}

func fieldValueSet(items []any, field string) map[string]bool {
	set := make(map[string]bool)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if val, ok := m[field]; ok {
			set[fmt.Sprintf("%v", val)] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// handleAggregate groups items by a field and reduces each group with the
// requested function, producing a DICT of group value to number.
func handleAggregate(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Aggr
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}

	type acc struct {
		sum   float64
		count int
		min   float64
		max   float64
	}
	groups := make(map[string]*acc)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		groupVal, ok := m[args.By]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", groupVal)
		a := groups[key]
		if a == nil {
			a = &acc{}
			groups[key] = a
		}

		if args.Op == "count" {
			a.count++
			continue
		}
		n, ok := numberOf(m[args.ValueField])
		if !ok {
			continue
		}
		if a.count == 0 {
			a.min, a.max = n, n
		} else {
			if n < a.min {
				a.min = n
			}
			if n > a.max {
				a.max = n
			}
		}
		a.sum += n
		a.count++
	}

	out := make(map[string]any, len(groups))
	for key, a := range groups {
		if a.count == 0 {
			continue
		}
		switch args.Op {
		case "sum":
			out[key] = a.sum
		case "avg":
			out[key] = a.sum / float64(a.count)
		case "min":
			out[key] = a.min
		case "max":
			out[key] = a.max
		case "count":
			out[key] = float64(a.count)
		}
	}
	if len(out) == 0 {
		return empty(map[string]any{})
	}
	return success(out, len(out))
}

// handleGroup buckets items by a field value into a DICT of lists.
func handleGroup(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Group
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}

	groups := make(map[string]any)
	total := 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		val, ok := m[args.Field]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", val)
		bucket, _ := groups[key].([]any)
		groups[key] = append(bucket, item)
		total++
	}
	if total == 0 {
		return empty(map[string]any{})
	}
	return success(groups, len(groups))
}

// handleRank sorts items by a field and stamps a 1-based rank onto each.
// Numeric values sort numerically; everything else lexically. Items
// missing the field sort last.
func handleRank(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Rank
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

	sorted := make([]any, len(items))
	copy(sorted, items)
	descending := args.Order != "asc"
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if descending {
			a, b = b, a
		}
		less, ok := lessByField(a, b, args.Field)
		return ok && less
	})

	if args.Limit > 0 && len(sorted) > args.Limit {
		sorted = sorted[:args.Limit]
	}
	out := make([]any, len(sorted))
	for i, item := range sorted {
		ranked := cloneItem(item)
		ranked["rank"] = float64(i + 1)
		out[i] = ranked
	}
	return success(out, len(out))
}

// lessByField compares two items on a field in ascending order. The
// second return is false when neither side has a comparable value.
func lessByField(a, b any, field string) (bool, bool) {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return false, false
	}
	av, aok := am[field]
	bv, bok := bm[field]
	if !aok && !bok {
		return false, false
	}
	if !aok {
		return false, true
	}
	if !bok {
		return true, true
	}
	an, aNum := numberOf(av)
	bn, bNum := numberOf(bv)
	if aNum && bNum {
		return an < bn, true
	}
	return fmt.Sprintf("%v", av) < fmt.Sprintf("%v", bv), true
}

// handleCheck implements REQUIRE and ASSERT. Both evaluate the same
// conditions; the executor decides whether a failure is fatal.
func handleCheck(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Check
	v, err := env.lookup(args.Name)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}

	if args.Kind == "not_empty" {
		if v.Len() == 0 {
			return failure(fmt.Errorf("%s check failed: %q is empty", cmd.Verb, args.Name))
		}
		return success(nil, v.Len())
	}

	n := float64(v.Len())
	ok := false
	switch args.Op {
	case "=", "==":
		ok = n == args.Value
	case "!=":
		ok = n != args.Value
	case ">":
		ok = n > args.Value
	case ">=":
		ok = n >= args.Value
	case "<":
		ok = n < args.Value
	case "<=":
		ok = n <= args.Value
	}
	if !ok {
		return failure(fmt.Errorf("%s check failed: count of %q is %g, wanted %s %g",
			cmd.Verb, args.Name, n, args.Op, args.Value))
	}
	return success(nil, int(n))
}

package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/state"
)

// handleFind queries the graph adapter. An empty result is status=empty,
// not an error.
func handleFind(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Find
	switch args.Target {
	case "nodes":
		nodes, err := env.Graph.FindNodes(ctx, args.Where, args.Limit)
		if err != nil {
			return failure(err)
		}
		items := make([]any, len(nodes))
		for i, n := range nodes {
			items[i] = map[string]any(n)
		}
		if len(items) == 0 {
			return empty([]any{})
		}
		return success(items, len(items))

	case "edges":
		edges, err := env.Graph.FindEdges(ctx, args.Where, args.Limit)
		if err != nil {
			return failure(err)
		}
		items := make([]any, len(edges))
		for i, e := range edges {
			items[i] = e.Map()
		}
		if len(items) == 0 {
			return empty([]any{})
		}
		return success(items, len(items))

	case "paths":
		// Endpoint candidates come from the node predicate; paths connect
		// any matched node to any other, bounded by the path-length cap.
		nodes, err := env.Graph.FindNodes(ctx, args.Where, 0)
		if err != nil {
			return failure(err)
		}
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			if id := n.ID(); id != "" {
				ids = append(ids, id)
			}
		}
		paths, err := env.Graph.FindPaths(ctx, ids, ids, env.Limits.MaxPathLength)
		if err != nil {
			return failure(err)
		}
		items := make([]any, 0, len(paths))
		for _, p := range paths {
			items = append(items, map[string]any{"nodes": p.Nodes, "length": float64(p.Length)})
			if args.Limit > 0 && len(items) >= args.Limit {
				break
			}
		}
		if len(items) == 0 {
			return empty([]any{})
		}
		return success(items, len(items))
	}
	return failure(fmt.Errorf("unknown FIND target %q", args.Target))
}

func handleCount(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Count
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	if args.Where != nil {
		items = filterItems(items, args.Where)
	}

	if args.GroupBy != "" {
		groups := make(map[string]any)
		uniqueSeen := make(map[string]map[string]bool)
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			groupVal, ok := m[args.GroupBy]
			if !ok {
				continue
			}
			key := fmt.Sprintf("%v", groupVal)
			if args.Field != "" {
				fieldVal, ok := m[args.Field]
				if !ok {
					continue
				}
				if args.Unique {
					if uniqueSeen[key] == nil {
						uniqueSeen[key] = make(map[string]bool)
					}
					s := fmt.Sprintf("%v", fieldVal)
					if uniqueSeen[key][s] {
						continue
					}
					uniqueSeen[key][s] = true
				}
			}
			prev, _ := groups[key].(float64)
			groups[key] = prev + 1
		}
		if len(groups) == 0 {
			return empty(map[string]any{})
		}
		return success(groups, len(groups))
	}

	n := 0.0
	if args.Field == "" {
		n = float64(len(items))
	} else {
		seen := make(map[string]bool)
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			val, ok := m[args.Field]
			if !ok {
				continue
			}
			if args.Unique {
				s := fmt.Sprintf("%v", val)
				if seen[s] {
					continue
				}
				seen[s] = true
			}
			n++
		}
	}
	if n == 0 {
		return empty(0.0)
	}
	return success(n, int(n))
}

func handleSelect(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Select
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	if args.Where != nil {
		items = filterItems(items, args.Where)
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		projected := make(map[string]any, len(args.Fields))
		for _, field := range args.Fields {
			if val, ok := m[field]; ok {
				projected[field] = val
			}
		}
		out = append(out, projected)
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	return success(out, len(out))
}

func handleShow(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Show
	v, err := env.lookup(args.Name)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	limit := args.Limit
	if limit <= 0 {
		limit = env.Limits.MaxShowItems
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %d entries)", v.Name, v.Type, v.Len())
	switch v.Type {
	case state.TypeList:
		n := len(v.Items)
		if n > limit {
			n = limit
		}
		for _, item := range v.Items[:n] {
			fmt.Fprintf(&b, "\n  %v", item)
		}
		if len(v.Items) > n {
			fmt.Fprintf(&b, "\n  ... %d more", len(v.Items)-n)
		}
	case state.TypeDict:
		keys := make([]string, 0, len(v.Entries))
		for k := range v.Entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > limit {
			keys = keys[:limit]
		}
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %v", k, v.Entries[k])
		}
	case state.TypeCounter:
		fmt.Fprintf(&b, "\n  value: %g", v.Value)
	}

	rendered := b.String()
	env.Log.Info("%s", rendered)
	return ExecutionResult{Status: StatusSuccess, Value: rendered, Count: v.Len(), Note: rendered}
}

func handleInspect(_ context.Context, cmd *command.Command, env *Env) ExecutionResult {
	v, err := env.lookup(cmd.Inspect.Name)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}

	meta := map[string]any{
		"name":        v.Name,
		"type":        string(v.Type),
		"description": v.Description,
		"size":        v.Len(),
		"created_at":  v.CreatedAt,
		"updated_at":  v.UpdatedAt,
	}
	if len(v.Fields) > 0 {
		fields := make(map[string]any, len(v.Fields))
		for name, fm := range v.Fields {
			fields[name] = map[string]any{"source": fm.Source, "description": fm.Description}
		}
		meta["fields"] = fields
	}
	if len(v.Provenance) > 0 {
		last := v.Provenance[len(v.Provenance)-1]
		meta["last_write"] = map[string]any{"command": last.SourceCommand, "at": last.Timestamp}
	}

	note := fmt.Sprintf("%s: %s with %d entries, %d recorded writes", v.Name, v.Type, v.Len(), len(v.Provenance))
	env.Log.Info("%s", note)
	return ExecutionResult{Status: StatusSuccess, Value: meta, Count: v.Len(), Note: note}
}

package engine

import (
	"context"
	"fmt"

	"github.com/gasl-lang/gasl/adapter"
	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/condition"
)

// edgeExpr builds the predicate for one expansion step: edges leaving (or
// entering) id, optionally restricted to the given relation types.
func edgeExpr(id, endpointField string, relations []string) condition.Expr {
	var expr condition.Expr = &condition.Comparison{Field: endpointField, Op: condition.OpEq, Value: id}
	if len(relations) > 0 && !(len(relations) == 1 && relations[0] == "any") {
		list := make([]any, len(relations))
		for i, rel := range relations {
			list[i] = rel
		}
		expr = &condition.Logical{
			Op:    condition.OpAnd,
			Left:  expr,
			Right: &condition.Comparison{Field: "type", Op: condition.OpIn, List: list},
		}
	}
	return expr
}

// expand returns the neighbor IDs of id reachable over one hop.
func expand(ctx context.Context, env *Env, id, direction string, relations []string) ([]string, error) {
	var ids []string
	if direction == "out" || direction == "both" || direction == "" {
		edges, err := env.Graph.FindEdges(ctx, edgeExpr(id, "source", relations), 0)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			ids = append(ids, e.Target)
		}
	}
	if direction == "in" || direction == "both" {
		edges, err := env.Graph.FindEdges(ctx, edgeExpr(id, "target", relations), 0)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			ids = append(ids, e.Source)
		}
	}
	return ids, nil
}

// bfs walks outward from the seed IDs, collecting discovered nodes with
// their hop distance. It stops at maxDepth or when the node cap is hit;
// hitting the cap reports truncation.
func bfs(ctx context.Context, env *Env, seeds []string, direction string, relations []string, maxDepth int) ([]map[string]any, bool, error) {
	visited := make(map[string]bool, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	var collected []map[string]any
	truncated := false
	for depth := 1; depth <= maxDepth && len(frontier) > 0 && !truncated; depth++ {
		var next []string
		for _, id := range frontier {
			neighborIDs, err := expand(ctx, env, id, direction, relations)
			if err != nil {
				return nil, false, err
			}
			for _, nid := range neighborIDs {
				if visited[nid] {
					continue
				}
				visited[nid] = true
				node, err := env.Graph.GetNode(ctx, nid)
				if err != nil {
					continue
				}
				m := map[string]any(node)
				m["depth"] = float64(depth)
				collected = append(collected, m)
				next = append(next, nid)
				if len(collected) >= env.Limits.MaxTraversalNodes {
					truncated = true
					break
				}
			}
			if truncated {
				break
			}
		}
		frontier = next
	}
	return collected, truncated, nil
}

// handleGraphWalk walks from the nodes in the source variable along the
// given relation types up to a depth cap.
func handleGraphWalk(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Walk
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	seeds := itemIDs(items)
	if len(seeds) == 0 {
		return empty([]any{})
	}

	depth := args.Depth
	if depth <= 0 {
		depth = 1
	}
	capped := false
	if depth > env.Limits.MaxDepth {
		depth = env.Limits.MaxDepth
		capped = true
	}

	nodes, truncated, err := bfs(ctx, env, seeds, args.Direction, args.Relations, depth)
	if err != nil {
		return failure(err)
	}
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	switch {
	case truncated:
		return partial(out, len(out), fmt.Sprintf("traversal stopped at the %d-node cap", env.Limits.MaxTraversalNodes))
	case capped:
		return partial(out, len(out), fmt.Sprintf("depth %d capped to %d", args.Depth, env.Limits.MaxDepth))
	}
	return success(out, len(out))
}

// handleGraphConnect finds paths from nodes in one variable to nodes in
// another, optionally restricted to relation types, bounded by MAXLEN.
func handleGraphConnect(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Connect
	fromVar, err := env.lookup(args.From)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	toVar, err := env.lookup(args.To)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	fromItems, err := listItems(fromVar)
	if err != nil {
		return failure(err)
	}
	toItems, err := listItems(toVar)
	if err != nil {
		return failure(err)
	}
	starts := itemIDs(fromItems)
	targets := make(map[string]bool)
	for _, id := range itemIDs(toItems) {
		targets[id] = true
	}
	if len(starts) == 0 || len(targets) == 0 {
		return empty([]any{})
	}

	maxLen := args.MaxLen
	capped := false
	if maxLen <= 0 || maxLen > env.Limits.MaxPathLength {
		if maxLen > env.Limits.MaxPathLength {
			capped = true
		}
		maxLen = env.Limits.MaxPathLength
	}

	var paths []any
	truncated := false
	for _, start := range starts {
		found, overflow, err := connectFrom(ctx, env, start, targets, args.Relations, maxLen)
		if err != nil {
			return failure(err)
		}
		paths = append(paths, found...)
		if overflow {
			truncated = true
			break
		}
	}
	if len(paths) == 0 {
		return empty([]any{})
	}
	switch {
	case truncated:
		return partial(paths, len(paths), fmt.Sprintf("search stopped at the %d-path cap", env.Limits.MaxTraversalNodes))
	case capped:
		return partial(paths, len(paths), fmt.Sprintf("path length capped to %d", env.Limits.MaxPathLength))
	}
	return success(paths, len(paths))
}

// connectFrom enumerates simple paths from start to any target via DFS.
func connectFrom(ctx context.Context, env *Env, start string, targets map[string]bool, relations []string, maxLen int) ([]any, bool, error) {
	var paths []any
	overflow := false

	var walk func(current string, trail []string, visited map[string]bool) error
	walk = func(current string, trail []string, visited map[string]bool) error {
		if overflow {
			return nil
		}
		if targets[current] && len(trail) > 1 {
			nodes := make([]string, len(trail))
			copy(nodes, trail)
			paths = append(paths, map[string]any{"nodes": nodes, "length": float64(len(nodes) - 1)})
			if len(paths) >= env.Limits.MaxTraversalNodes {
				overflow = true
			}
			return nil
		}
		if len(trail)-1 >= maxLen {
			return nil
		}
		neighborIDs, err := expand(ctx, env, current, "out", relations)
		if err != nil {
			return err
		}
		for _, nid := range neighborIDs {
			if visited[nid] {
				continue
			}
			visited[nid] = true
			if err := walk(nid, append(trail, nid), visited); err != nil {
				return err
			}
			delete(visited, nid)
		}
		return nil
	}

	err := walk(start, []string{start}, map[string]bool{start: true})
	return paths, overflow, err
}

// handleSubgraph collects the neighborhood around the source nodes within
// a radius, both edge directions, optionally filtered by node type.
func handleSubgraph(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Subgraph
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	seeds := itemIDs(items)
	if len(seeds) == 0 {
		return empty([]any{})
	}

	radius := args.Radius
	capped := false
	if radius <= 0 {
		radius = 1
	}
	if radius > env.Limits.MaxDepth {
		radius = env.Limits.MaxDepth
		capped = true
	}

	nodes, truncated, err := bfs(ctx, env, seeds, "both", nil, radius)
	if err != nil {
		return failure(err)
	}

	include := make(map[string]bool, len(args.Include))
	for _, typ := range args.Include {
		include[typ] = true
	}
	var out []any
	for _, n := range nodes {
		if len(include) > 0 {
			typ, _ := n["type"].(string)
			if !include[typ] {
				continue
			}
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	switch {
	case truncated:
		return partial(out, len(out), fmt.Sprintf("neighborhood stopped at the %d-node cap", env.Limits.MaxTraversalNodes))
	case capped:
		return partial(out, len(out), fmt.Sprintf("radius %d capped to %d", args.Radius, env.Limits.MaxDepth))
	}
	return success(out, len(out))
}

// handleGraphPattern matches simple structural motifs over the nodes in
// the source variable.
func handleGraphPattern(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Pattern
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	ids := itemIDs(items)
	if len(ids) == 0 {
		return empty([]any{})
	}

	threshold := args.Threshold
	if threshold <= 0 {
		threshold = 2
	}

	var out []any
	for _, id := range ids {
		outDeg, err := degree(ctx, env, id, "source")
		if err != nil {
			return failure(err)
		}
		inDeg, err := degree(ctx, env, id, "target")
		if err != nil {
			return failure(err)
		}
		match := false
		switch args.Pattern {
		case "fan_out":
			match = outDeg >= threshold
		case "fan_in":
			match = inDeg >= threshold
		case "isolated":
			match = outDeg == 0 && inDeg == 0
		}
		if match {
			out = append(out, map[string]any{
				"id":         id,
				"pattern":    args.Pattern,
				"out_degree": float64(outDeg),
				"in_degree":  float64(inDeg),
			})
		}
	}
	if len(out) == 0 {
		return empty([]any{})
	}
	return success(out, len(out))
}

func degree(ctx context.Context, env *Env, id, endpointField string) (int, error) {
	edges, err := env.Graph.FindEdges(ctx, &condition.Comparison{
		Field: endpointField, Op: condition.OpEq, Value: id,
	}, 0)
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

// handleCreate adds nodes or edges to the backing graph from the items of
// a variable. Creation is additive only; there is no delete verb.
func handleCreate(ctx context.Context, cmd *command.Command, env *Env) ExecutionResult {
	args := cmd.Create
	v, err := env.lookup(args.Source)
	if err != nil {
		return ExecutionResult{Status: StatusBindingFailure, Err: err}
	}
	items, err := listItems(v)
	if err != nil {
		return failure(err)
	}
	if len(items) == 0 {
		return empty(0.0)
	}

	created := 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch args.Kind {
		case "nodes":
			if err := env.Graph.AddNode(ctx, adapter.Node(m)); err != nil {
				return failure(err)
			}
		case "edges":
			source, _ := m["source"].(string)
			target, _ := m["target"].(string)
			if source == "" || target == "" {
				return failure(fmt.Errorf("edge item %d has no source/target", created))
			}
			attrs := make(map[string]any, len(m))
			for k, val := range m {
				if k != "source" && k != "target" {
					attrs[k] = val
				}
			}
			if err := env.Graph.AddEdge(ctx, adapter.Edge{Source: source, Target: target, Attributes: attrs}); err != nil {
				return failure(err)
			}
		}
		created++
	}
	return success(float64(created), created)
}

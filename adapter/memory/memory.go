// Package memory implements an in-process GraphAdapter over plain maps.
// It backs tests and small analyses loaded from a JSON graph dump.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gasl-lang/gasl/adapter"
	"github.com/gasl-lang/gasl/condition"
)

// MemoryGraph is a mutex-protected property graph. Zero value is not
// usable; construct with NewMemoryGraph or LoadGraph.
type MemoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]adapter.Node
	edges []adapter.Edge
	// adjacency by direction, nodeID -> neighbor IDs in insertion order
	out map[string][]string
	in  map[string][]string
}

var _ adapter.GraphAdapter = (*MemoryGraph)(nil)

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes: make(map[string]adapter.Node),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

// graphFile is the on-disk JSON shape accepted by LoadGraph.
type graphFile struct {
	Nodes []map[string]any `json:"nodes"`
	Edges []struct {
		Source     string         `json:"source"`
		Target     string         `json:"target"`
		Attributes map[string]any `json:"attributes"`
	} `json:"edges"`
}

// LoadGraph reads a {"nodes": [...], "edges": [...]} JSON file.
func LoadGraph(path string) (*MemoryGraph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	var file graphFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}

	g := NewMemoryGraph()
	ctx := context.Background()
	for _, attrs := range file.Nodes {
		if err := g.AddNode(ctx, adapter.Node(attrs)); err != nil {
			return nil, err
		}
	}
	for _, e := range file.Edges {
		err := g.AddEdge(ctx, adapter.Edge{Source: e.Source, Target: e.Target, Attributes: e.Attributes})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode inserts a node, rejecting duplicates and missing IDs.
func (g *MemoryGraph) AddNode(_ context.Context, node adapter.Node) error {
	id := node.ID()
	if id == "" {
		return &adapter.AdapterError{Op: "add node", Err: fmt.Errorf("node has no id")}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[id]; exists {
		return &adapter.AdapterError{Op: "add node", Err: fmt.Errorf("node %q already exists", id)}
	}
	g.nodes[id] = cloneNode(node)
	return nil
}

// AddEdge inserts an edge between two existing nodes.
func (g *MemoryGraph) AddEdge(_ context.Context, edge adapter.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[edge.Source]; !ok {
		return &adapter.AdapterError{Op: "add edge", Err: fmt.Errorf("source node %q not found", edge.Source)}
	}
	if _, ok := g.nodes[edge.Target]; !ok {
		return &adapter.AdapterError{Op: "add edge", Err: fmt.Errorf("target node %q not found", edge.Target)}
	}
	g.edges = append(g.edges, adapter.Edge{
		Source:     edge.Source,
		Target:     edge.Target,
		Attributes: cloneAttrs(edge.Attributes),
	})
	g.out[edge.Source] = append(g.out[edge.Source], edge.Target)
	g.in[edge.Target] = append(g.in[edge.Target], edge.Source)
	return nil
}

// GetNode returns a copy of the node with the given ID.
func (g *MemoryGraph) GetNode(_ context.Context, id string) (adapter.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil, &adapter.AdapterError{Op: "get node", Err: fmt.Errorf("node %q not found", id)}
	}
	return cloneNode(node), nil
}

// FindNodes returns matching nodes in stable (sorted-ID) order.
func (g *MemoryGraph) FindNodes(_ context.Context, expr condition.Expr, limit int) ([]adapter.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []adapter.Node
	for _, id := range ids {
		node := g.nodes[id]
		if expr != nil && !expr.Evaluate(node) {
			continue
		}
		out = append(out, cloneNode(node))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FindEdges returns matching edges in insertion order. The condition sees
// edge attributes plus "source" and "target".
func (g *MemoryGraph) FindEdges(_ context.Context, expr condition.Expr, limit int) ([]adapter.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []adapter.Edge
	for _, edge := range g.edges {
		if expr != nil && !expr.Evaluate(edge.Map()) {
			continue
		}
		out = append(out, adapter.Edge{
			Source:     edge.Source,
			Target:     edge.Target,
			Attributes: cloneAttrs(edge.Attributes),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Neighbors returns adjacent nodes following "out", "in" or "both" edges.
func (g *MemoryGraph) Neighbors(_ context.Context, id, direction string) ([]adapter.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, &adapter.AdapterError{Op: "neighbors", Err: fmt.Errorf("node %q not found", id)}
	}

	var ids []string
	switch direction {
	case "out":
		ids = g.out[id]
	case "in":
		ids = g.in[id]
	case "both", "":
		ids = append(append([]string{}, g.out[id]...), g.in[id]...)
	default:
		return nil, &adapter.AdapterError{Op: "neighbors", Err: fmt.Errorf("unknown direction %q", direction)}
	}

	seen := make(map[string]bool, len(ids))
	var out []adapter.Node
	for _, nid := range ids {
		if seen[nid] {
			continue
		}
		seen[nid] = true
		out = append(out, cloneNode(g.nodes[nid]))
	}
	return out, nil
}

// FindPaths enumerates simple directed paths from any start ID to any end
// ID, up to maxLen hops, via depth-first search.
func (g *MemoryGraph) FindPaths(_ context.Context, startIDs, endIDs []string, maxLen int) ([]adapter.Path, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ends := make(map[string]bool, len(endIDs))
	for _, id := range endIDs {
		ends[id] = true
	}

	var paths []adapter.Path
	var walk func(current string, trail []string, visited map[string]bool)
	walk = func(current string, trail []string, visited map[string]bool) {
		if ends[current] && len(trail) > 1 {
			path := make([]string, len(trail))
			copy(path, trail)
			paths = append(paths, adapter.Path{Nodes: path, Length: len(path) - 1})
			return
		}
		if len(trail)-1 >= maxLen {
			return
		}
		for _, next := range g.out[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(next, append(trail, next), visited)
			delete(visited, next)
		}
	}

	for _, start := range startIDs {
		if _, ok := g.nodes[start]; !ok {
			continue
		}
		walk(start, []string{start}, map[string]bool{start: true})
	}
	return paths, nil
}

// Schema summarizes node/edge types and per-type attribute names.
func (g *MemoryGraph) Schema(_ context.Context) (*adapter.Schema, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodeTypes := make(map[string]bool)
	nodeAttrs := make(map[string]map[string]bool)
	for _, node := range g.nodes {
		typ, _ := node["type"].(string)
		if typ == "" {
			typ = "node"
		}
		nodeTypes[typ] = true
		if nodeAttrs[typ] == nil {
			nodeAttrs[typ] = make(map[string]bool)
		}
		for attr := range node {
			nodeAttrs[typ][attr] = true
		}
	}

	edgeTypes := make(map[string]bool)
	for _, edge := range g.edges {
		typ, _ := edge.Attributes["type"].(string)
		if typ == "" {
			typ = "edge"
		}
		edgeTypes[typ] = true
	}

	schema := &adapter.Schema{
		NodeTypes:      sortedKeys(nodeTypes),
		EdgeTypes:      sortedKeys(edgeTypes),
		NodeAttributes: make(map[string][]string, len(nodeAttrs)),
		NodeCount:      len(g.nodes),
		EdgeCount:      len(g.edges),
	}
	for typ, attrs := range nodeAttrs {
		schema.NodeAttributes[typ] = sortedKeys(attrs)
	}
	return schema, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneNode(node adapter.Node) adapter.Node {
	return adapter.Node(cloneAttrs(node))
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

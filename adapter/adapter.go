// Package adapter defines the boundary between the GASL engine and a
// graph backend. The engine only ever talks to a GraphAdapter; concrete
// backends (in-memory, database-backed, remote) live in subpackages.
package adapter

import (
	"context"
	"fmt"

	"github.com/gasl-lang/gasl/condition"
)

// Node is one graph node in wire shape: its attributes keyed by name.
// Every node carries an "id" attribute; "type" is conventional but not
// required.
type Node map[string]any

// ID returns the node's identifier, or "" when absent.
func (n Node) ID() string {
	id, _ := n["id"].(string)
	return id
}

// Edge is one graph edge: source, target and its attributes.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Map flattens an edge into a single attribute map, the shape handlers
// bind into LIST variables. Source and target appear as "source" and
// "target" keys alongside the edge's own attributes.
func (e Edge) Map() map[string]any {
	out := make(map[string]any, len(e.Attributes)+2)
	for k, v := range e.Attributes {
		out[k] = v
	}
	out["source"] = e.Source
	out["target"] = e.Target
	return out
}

// Path is an ordered node-ID sequence from one endpoint to another.
type Path struct {
	Nodes  []string `json:"nodes"`
	Length int      `json:"length"`
}

// Schema summarizes what the graph contains, so the planner can be told
// which node types, edge types and attributes actually exist.
type Schema struct {
	NodeTypes      []string            `json:"node_types"`
	EdgeTypes      []string            `json:"edge_types"`
	NodeAttributes map[string][]string `json:"node_attributes,omitempty"`
	NodeCount      int                 `json:"node_count"`
	EdgeCount      int                 `json:"edge_count"`
}

// AdapterError wraps a backend failure with the operation that caused it.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("graph adapter %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// GraphAdapter is the full backend contract. Query methods evaluate a
// condition expression against attribute maps; a nil expression matches
// everything. A limit of 0 means unbounded.
type GraphAdapter interface {
	// FindNodes returns nodes whose attributes satisfy expr.
	FindNodes(ctx context.Context, expr condition.Expr, limit int) ([]Node, error)

	// FindEdges returns edges whose attributes (including source/target)
	// satisfy expr.
	FindEdges(ctx context.Context, expr condition.Expr, limit int) ([]Edge, error)

	// GetNode returns one node by ID, or a not-found AdapterError.
	GetNode(ctx context.Context, id string) (Node, error)

	// Neighbors returns the nodes adjacent to id, following edges in the
	// given direction ("out", "in" or "both").
	Neighbors(ctx context.Context, id, direction string) ([]Node, error)

	// FindPaths returns simple paths between any start and any end node,
	// up to maxLen hops.
	FindPaths(ctx context.Context, startIDs, endIDs []string, maxLen int) ([]Path, error)

	// AddNode inserts a node. Inserting an existing ID is an error.
	AddNode(ctx context.Context, node Node) error

	// AddEdge inserts an edge between existing nodes.
	AddEdge(ctx context.Context, edge Edge) error

	// Schema reports the graph's shape.
	Schema(ctx context.Context) (*Schema, error)
}

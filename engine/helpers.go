package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gasl-lang/gasl/condition"
	"github.com/gasl-lang/gasl/state"
)

// listItems extracts the item slice of a LIST variable. A DICT is viewed
// as one-item-per-entry so list verbs can still operate on it.
func listItems(v *state.Variable) ([]any, error) {
	switch v.Type {
	case state.TypeList:
		return v.Items, nil
	case state.TypeDict:
		items := make([]any, 0, len(v.Entries))
		for key, value := range v.Entries {
			items = append(items, map[string]any{"key": key, "value": value})
		}
		return items, nil
	default:
		return nil, fmt.Errorf("variable %q is a %s, expected LIST", v.Name, v.Type)
	}
}

func filterItems(items []any, expr condition.Expr) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if expr.Evaluate(m) {
			out = append(out, item)
		}
	}
	return out
}

// itemIDs extracts the "id" attribute of each item, dropping items
// without one.
func itemIDs(items []any) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := m["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func numberOf(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func cloneItem(item any) map[string]any {
	m, ok := item.(map[string]any)
	if !ok {
		return map[string]any{"value": item}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// provenanceFor stamps a durable write with the command that produced it.
func provenanceFor(cmdText string, detail map[string]any) *state.Provenance {
	return &state.Provenance{
		SourceCommand: cmdText,
		Timestamp:     time.Now().UTC(),
		Detail:        detail,
	}
}

// Package state implements the GASL variable model and its two namespaces:
// the plan-scoped ContextStore and the durable, versioned StateStore.
package state

import (
	"fmt"
	"time"
)

// VarType is the declared type of a variable, fixed at creation.
type VarType string

const (
	TypeList    VarType = "LIST"
	TypeDict    VarType = "DICT"
	TypeCounter VarType = "COUNTER"
)

// ParseVarType validates a type keyword from a DECLARE command.
func ParseVarType(s string) (VarType, error) {
	switch VarType(s) {
	case TypeList, TypeDict, TypeCounter:
		return VarType(s), nil
	}
	return "", fmt.Errorf("unknown variable type %q (expected LIST, DICT or COUNTER)", s)
}

// FieldMeta records the provenance of one data field on a LIST/DICT
// variable: where it came from and when.
type FieldMeta struct {
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Provenance traces a write back to the command that produced it.
type Provenance struct {
	SourceCommand string         `json:"source_command"`
	Timestamp     time.Time      `json:"timestamp"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Variable is a named, typed container. Exactly one of Items, Entries or
// Value is meaningful, depending on Type.
type Variable struct {
	Name        string  `json:"name"`
	Type        VarType `json:"type"`
	Description string  `json:"description,omitempty"`

	Items   []any          `json:"items,omitempty"`   // LIST
	Entries map[string]any `json:"entries,omitempty"` // DICT
	Value   float64        `json:"value"`             // COUNTER

	Fields     map[string]FieldMeta `json:"fields,omitempty"`
	Provenance []Provenance         `json:"provenance,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// NewVariable creates an empty variable of the given type.
func NewVariable(name string, typ VarType, description string) *Variable {
	now := time.Now().UTC()
	v := &Variable{
		Name:        name,
		Type:        typ,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch typ {
	case TypeList:
		v.Items = []any{}
	case TypeDict:
		v.Entries = map[string]any{}
	}
	return v
}

// NewList wraps raw items in an anonymous LIST variable, used by handlers
// to bind intermediate results into the context.
func NewList(name string, items []any) *Variable {
	v := NewVariable(name, TypeList, "")
	v.Items = items
	return v
}

// Len reports the variable's item count (LIST), key count (DICT) or 1 for
// a COUNTER.
func (v *Variable) Len() int {
	switch v.Type {
	case TypeList:
		return len(v.Items)
	case TypeDict:
		return len(v.Entries)
	default:
		return 1
	}
}

// Append adds items to a LIST variable.
func (v *Variable) Append(items ...any) error {
	if v.Type != TypeList {
		return &TypeError{Name: v.Name, Type: v.Type, Op: "append to"}
	}
	v.Items = append(v.Items, items...)
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// Merge combines a value into the variable. For a LIST it appends items,
// de-duplicating by identityKey when one is given; for a DICT it does
// key-wise overwrite; for a COUNTER it adds the numeric value.
func (v *Variable) Merge(value any, identityKey string) error {
	switch v.Type {
	case TypeList:
		items, err := asItems(value)
		if err != nil {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "merge non-list into"}
		}
		if identityKey == "" {
			v.Items = append(v.Items, items...)
		} else {
			seen := make(map[string]bool, len(v.Items))
			for _, existing := range v.Items {
				if key, ok := identityOf(existing, identityKey); ok {
					seen[key] = true
				}
			}
			for _, item := range items {
				key, ok := identityOf(item, identityKey)
				if ok && seen[key] {
					continue
				}
				if ok {
					seen[key] = true
				}
				v.Items = append(v.Items, item)
			}
		}
	case TypeDict:
		entries, ok := value.(map[string]any)
		if !ok {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "merge non-dict into"}
		}
		// Entries is omitted from JSON when empty, so a cloned DICT that
		// has never been written comes back with a nil map.
		if v.Entries == nil {
			v.Entries = make(map[string]any, len(entries))
		}
		for k, val := range entries {
			v.Entries[k] = val
		}
	case TypeCounter:
		delta, ok := toNumber(value)
		if !ok {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "merge non-numeric into"}
		}
		v.Value += delta
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// Replace substitutes the variable's full value.
func (v *Variable) Replace(value any) error {
	switch v.Type {
	case TypeList:
		items, err := asItems(value)
		if err != nil {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "replace with non-list"}
		}
		v.Items = items
	case TypeDict:
		entries, ok := value.(map[string]any)
		if !ok {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "replace with non-dict"}
		}
		v.Entries = entries
	case TypeCounter:
		n, ok := toNumber(value)
		if !ok {
			return &TypeError{Name: v.Name, Type: v.Type, Op: "replace with non-numeric"}
		}
		v.Value = n
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// Increment adds a delta to a COUNTER variable.
func (v *Variable) Increment(delta float64) error {
	if v.Type != TypeCounter {
		return &TypeError{Name: v.Name, Type: v.Type, Op: "increment"}
	}
	v.Value += delta
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// RawValue returns the payload in its natural Go shape.
func (v *Variable) RawValue() any {
	switch v.Type {
	case TypeList:
		return v.Items
	case TypeDict:
		return v.Entries
	default:
		return v.Value
	}
}

func asItems(value any) ([]any, error) {
	switch items := value.(type) {
	case []any:
		return items, nil
	case []map[string]any:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("value is not a list")
	}
}

func identityOf(item any, key string) (string, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m[key]
	if !ok || id == nil {
		return "", false
	}
	return fmt.Sprintf("%v", id), true
}

func toNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

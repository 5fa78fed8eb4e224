package state

import "sort"

// ContextStore is the plan-scoped variable namespace. It lives for exactly
// one plan's execution and is reset when the next plan begins; results
// survive only by being promoted into the StateStore via DECLARE/UPDATE.
type ContextStore struct {
	vars map[string]*Variable
}

// NewContextStore creates an empty context.
func NewContextStore() *ContextStore {
	return &ContextStore{vars: make(map[string]*Variable)}
}

// Declare creates a new context variable, failing on duplicates.
func (c *ContextStore) Declare(name string, typ VarType, description string) (*Variable, error) {
	if _, exists := c.vars[name]; exists {
		return nil, &DuplicateVariableError{Name: name}
	}
	v := NewVariable(name, typ, description)
	c.vars[name] = v
	return v, nil
}

// Get returns a context variable.
func (c *ContextStore) Get(name string) (*Variable, error) {
	v, ok := c.vars[name]
	if !ok {
		return nil, &UnknownVariableError{Name: name}
	}
	return v, nil
}

// Has reports whether a variable exists in the context.
func (c *ContextStore) Has(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Bind stores a variable under its name, overwriting any prior binding.
// Plan-local shadows of state variables are legal and intentional.
func (c *ContextStore) Bind(v *Variable) {
	c.vars[v.Name] = v
}

// Delete removes a variable if present.
func (c *ContextStore) Delete(name string) {
	delete(c.vars, name)
}

// Clear discards all context variables.
func (c *ContextStore) Clear() {
	c.vars = make(map[string]*Variable)
}

// Names returns the bound variable names in sorted order.
func (c *ContextStore) Names() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

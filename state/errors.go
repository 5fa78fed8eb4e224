package state

import "fmt"

// UnknownVariableError is returned when a variable name resolves to nothing
// in either the context or the state namespace.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// DuplicateVariableError is returned when DECLARE targets a name that
// already exists.
type DuplicateVariableError struct {
	Name string
}

func (e *DuplicateVariableError) Error() string {
	return fmt.Sprintf("variable %q already declared", e.Name)
}

// TypeError is returned when a write is incompatible with a variable's
// declared type, e.g. incrementing a LIST.
type TypeError struct {
	Name string
	Type VarType
	Op   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("cannot %s %s variable %q", e.Op, e.Type, e.Name)
}

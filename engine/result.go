// Package engine implements the GASL runtime: the command dispatcher with
// one handler per verb, and the hypothesis-driven traversal executor that
// turns a natural-language query into iterative LLM-planned command
// batches over a graph.
package engine

// Status classifies the outcome of one executed command.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusEmpty          Status = "empty"
	StatusPartial        Status = "partial"
	StatusError          Status = "error"
	StatusBindingFailure Status = "binding_failure"
	StatusSchemaMismatch Status = "schema_mismatch"
	StatusCancelled      Status = "cancelled"
)

// Failed reports whether the status aborts a stop-on-error plan.
func (s Status) Failed() bool {
	switch s {
	case StatusError, StatusBindingFailure, StatusSchemaMismatch:
		return true
	}
	return false
}

// ExecutionResult is what a handler returns to the executor.
type ExecutionResult struct {
	Status Status
	Value  any // bound into the context under the command's output name
	Count  int
	Note   string // human-readable detail, e.g. a truncation notice
	Err    error
}

func success(value any, count int) ExecutionResult {
	return ExecutionResult{Status: StatusSuccess, Value: value, Count: count}
}

func empty(value any) ExecutionResult {
	return ExecutionResult{Status: StatusEmpty, Value: value}
}

func partial(value any, count int, note string) ExecutionResult {
	return ExecutionResult{Status: StatusPartial, Value: value, Count: count, Note: note}
}

func failure(err error) ExecutionResult {
	return ExecutionResult{Status: StatusError, Err: err}
}

// BindingError reports a variable reference that resolved to nothing in
// either the context or the state namespace.
type BindingError struct {
	Name string
}

func (e *BindingError) Error() string {
	return "unresolved variable reference " + e.Name
}

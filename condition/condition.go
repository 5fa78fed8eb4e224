// Package condition implements the GASL predicate language: boolean
// expressions over node/edge/item attribute maps, combining attribute
// comparisons with AND/OR and parentheses.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareOp is a comparison operator inside a predicate.
type CompareOp string

const (
	OpEq         CompareOp = "="
	OpNe         CompareOp = "!="
	OpGt         CompareOp = ">"
	OpGe         CompareOp = ">="
	OpLt         CompareOp = "<"
	OpLe         CompareOp = "<="
	OpContains   CompareOp = "CONTAINS"
	OpStartsWith CompareOp = "STARTS_WITH"
	OpEndsWith   CompareOp = "ENDS_WITH"
	OpIn         CompareOp = "IN"
	OpNotIn      CompareOp = "NOT IN"
)

// LogicOp combines two sub-expressions.
type LogicOp string

const (
	OpAnd LogicOp = "AND"
	OpOr  LogicOp = "OR"
)

// ConditionError reports a malformed predicate. The message is written so it
// can be fed back to the LLM as a correction hint.
type ConditionError struct {
	Input   string
	Message string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("invalid condition %q: %s", e.Input, e.Message)
}

// Expr is a parsed predicate. Evaluate never fails: comparisons against
// missing attributes or uncoercible values simply do not match.
type Expr interface {
	Evaluate(attrs map[string]any) bool
	String() string
}

// Comparison is a single attribute test, e.g. `entity_type = "PERSON"`.
type Comparison struct {
	Field string
	Op    CompareOp
	Value any   // string, float64 or bool literal
	List  []any // populated for IN / NOT IN
}

// Logical joins two expressions with AND/OR. Chains of the same level are
// built left-to-right by the parser, so `a AND b OR c` is `(a AND b) OR c`.
type Logical struct {
	Op    LogicOp
	Left  Expr
	Right Expr
}

// Evaluate applies the comparison to an attribute map. A missing attribute
// evaluates to false for every operator, including !=.
func (c *Comparison) Evaluate(attrs map[string]any) bool {
	raw, ok := attrs[c.Field]
	if !ok || raw == nil {
		return false
	}

	switch c.Op {
	case OpEq:
		return equal(raw, c.Value)
	case OpNe:
		return !equal(raw, c.Value)
	case OpGt, OpGe, OpLt, OpLe:
		left, lok := toFloat(raw)
		right, rok := toFloat(c.Value)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case OpGt:
			return left > right
		case OpGe:
			return left >= right
		case OpLt:
			return left < right
		default:
			return left <= right
		}
	case OpContains:
		return strings.Contains(toString(raw), toString(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(toString(raw), toString(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(toString(raw), toString(c.Value))
	case OpIn:
		return inList(raw, c.List)
	case OpNotIn:
		return !inList(raw, c.List)
	}
	return false
}

func (c *Comparison) String() string {
	if c.Op == OpIn || c.Op == OpNotIn {
		parts := make([]string, len(c.List))
		for i, v := range c.List {
			parts[i] = formatLiteral(v)
		}
		return fmt.Sprintf("%s %s [%s]", c.Field, c.Op, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, formatLiteral(c.Value))
}

// Evaluate short-circuits the usual way.
func (l *Logical) Evaluate(attrs map[string]any) bool {
	if l.Op == OpAnd {
		return l.Left.Evaluate(attrs) && l.Right.Evaluate(attrs)
	}
	return l.Left.Evaluate(attrs) || l.Right.Evaluate(attrs)
}

func (l *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left.String(), l.Op, l.Right.String())
}

// equal compares numerically when both sides coerce to numbers, otherwise by
// case-sensitive string equality.
func equal(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return toString(a) == toString(b)
}

func inList(v any, list []any) bool {
	for _, item := range list {
		if equal(v, item) {
			return true
		}
	}
	return false
}

// toFloat coerces numbers and string-encoded numbers. Anything else reports
// failure so numeric operators can evaluate to false instead of erroring.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatLiteral(v any) string {
	switch n := v.(type) {
	case string:
		return strconv.Quote(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

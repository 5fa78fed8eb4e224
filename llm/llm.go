// Package llm defines the engine's language-model boundary: free-text
// generation plus structured (JSON-decoded) generation. Concrete clients
// live in subpackages; tests script a deterministic stub.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Client is the minimal surface the engine needs from a language model.
type Client interface {
	// Generate returns the model's free-text reply to prompt, with system
	// setting the role instructions.
	Generate(ctx context.Context, system, prompt string) (string, error)

	// GenerateStructured asks for a JSON reply and decodes it into out.
	// A reply that cannot be decoded yields a *SchemaMismatchError.
	GenerateStructured(ctx context.Context, system, prompt string, out any) error
}

// SchemaMismatchError reports a model reply that did not decode into the
// expected shape. Raw carries the reply for diagnostics and re-asking.
type SchemaMismatchError struct {
	Raw string
	Err error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("model reply did not match expected schema: %v", e.Err)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// ExtractJSON pulls the JSON payload out of a model reply that may wrap it
// in prose or a markdown code fence. It returns the substring from the
// first '{' or '[' to its matching close.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// DecodeStructured extracts and strictly decodes a JSON reply into out,
// wrapping any failure in a *SchemaMismatchError. Clients share this so
// all backends report mismatches identically.
func DecodeStructured(reply string, out any) error {
	payload := ExtractJSON(reply)
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(out); err != nil {
		return &SchemaMismatchError{Raw: reply, Err: err}
	}
	return nil
}

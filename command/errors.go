package command

import "fmt"

// ParseError reports a malformed command. Hint carries a correction
// suggestion phrased for the plan author, since parse failures are fed
// back to the LLM for self-correction.
type ParseError struct {
	Raw     string
	Message string
	Hint    string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("cannot parse %q: %s (hint: %s)", e.Raw, e.Message, e.Hint)
	}
	return fmt.Sprintf("cannot parse %q: %s", e.Raw, e.Message)
}

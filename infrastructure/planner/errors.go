package planner

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat matches planner output that is not a valid decision.
var ErrInvalidFormat = errors.New("planner output has an invalid format")

// ErrScriptExhausted is returned by ScriptedPlanner when no step is left.
var ErrScriptExhausted = errors.New("planner script exhausted")

// FormatError carries the raw output that could not be parsed. The loop
// turns it into an observation instead of failing the run.
type FormatError struct {
	Output string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %v (output: %s)", e.Err, truncate(e.Output, 200))
}

// Unwrap returns ErrInvalidFormat so errors.Is matches the sentinel.
func (e *FormatError) Unwrap() []error {
	return []error{ErrInvalidFormat, e.Err}
}

// IsFormatError reports whether err is a parse failure of planner output.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

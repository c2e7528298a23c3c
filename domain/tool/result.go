package tool

import "time"

// Result contains the output of a tool execution.
type Result struct {
	// Output is the text observation returned to the planner.
	Output string `json:"output"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`

	// Cached indicates the result was served from a cache.
	Cached bool `json:"cached,omitempty"`
}

// NewResult creates a result with the given text output.
func NewResult(output string) Result {
	return Result{Output: output}
}

// NewCachedResult creates a result marked as cached.
func NewCachedResult(output string) Result {
	return Result{Output: output, Cached: true}
}

// IsEmpty returns true if the tool produced no text.
func (r Result) IsEmpty() bool {
	return r.Output == ""
}

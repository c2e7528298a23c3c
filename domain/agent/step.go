package agent

import (
	"encoding/json"
	"time"
)

// Step is one (thought, action, observation) triple of the run transcript.
type Step struct {
	Iteration   int             `json:"iteration"`
	Thought     string          `json:"thought,omitempty"`
	Action      string          `json:"action,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Observation string          `json:"observation"`
	IsError     bool            `json:"is_error,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// HasAction reports whether the step invoked a tool.
func (s Step) HasAction() bool {
	return s.Action != ""
}

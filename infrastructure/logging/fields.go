package logging

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// RunID adds a run ID field.
func RunID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("run_id", id)
	}
}

// State adds a loop state field.
func State(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// Transition adds from_state and to_state fields.
func Transition(from, to agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_state", string(from)).Str("to_state", string(to))
	}
}

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// Stage adds a stage name field.
func Stage(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("stage", name)
	}
}

// Iteration adds a loop iteration field.
func Iteration(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("iteration", n)
	}
}

// File adds an input file field.
func File(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("file", path)
	}
}

// Decision adds a decision type field.
func Decision(d agent.DecisionType) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("decision", string(d))
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// Count adds an integer field with a custom key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Tokens adds prompt and completion token counts.
func Tokens(prompt, completion int64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("prompt_tokens", prompt).Int64("completion_tokens", completion)
	}
}

// Cost adds a USD cost field.
func Cost(usd float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("cost_usd", fmt.Sprintf("%.6f", usd))
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

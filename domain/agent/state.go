// Package agent provides the domain model of the reasoning loop.
package agent

// State identifies a node of the reasoning loop's state machine.
type State string

// Loop states.
const (
	StateThinking State = "thinking" // Ask the planner for the next action
	StateActing   State = "acting"   // Invoke a tool and capture the observation
	StateDone     State = "done"     // Terminal success, a final answer exists
	StateFailed   State = "failed"   // Terminal failure (budget, timeout, model error)
)

// IsTerminal returns true if this is a terminal state (done or failed).
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// IsValid returns true if the state is one of the loop states.
func (s State) IsValid() bool {
	switch s {
	case StateThinking, StateActing, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// AllStates returns all loop states.
func AllStates() []State {
	return []State{StateThinking, StateActing, StateDone, StateFailed}
}

package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// guardWithinBudget allows a tool call while the think step that chose it
// is inside the iteration budget.
func guardWithinBudget(ctx *Context, _ statekit.Event) bool {
	if ctx == nil || ctx.Run == nil {
		return false
	}
	return WithinBudget(ctx.Run.Iterations, ctx.MaxIterations)
}

// WithinBudget reports whether iteration n (1-based) fits a budget of max.
func WithinBudget(n, max int) bool {
	return max <= 0 || n <= max
}

// stateFromEventType derives the target state from an event type. The
// empty state is returned for events the machine does not know, including
// the initial entry.
func stateFromEventType(eventType statekit.EventType) agent.State {
	switch eventType {
	case EventAct:
		return agent.StateActing
	case EventObserve:
		return agent.StateThinking
	case EventAnswer:
		return agent.StateDone
	case EventFail:
		return agent.StateFailed
	default:
		return ""
	}
}

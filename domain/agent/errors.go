package agent

import "errors"

// Domain errors for the reasoning loop.
var (
	// ErrBudgetExhausted indicates the iteration budget ran out before a final answer.
	ErrBudgetExhausted = errors.New("iteration budget exhausted without a final answer")

	// ErrTimeout indicates the wall-clock ceiling of a run was reached.
	ErrTimeout = errors.New("run timed out")

	// ErrInvalidTransition indicates the state machine refused a transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRunTerminated indicates an operation was attempted on a terminated run.
	ErrRunTerminated = errors.New("run already terminated")

	// ErrEmptyTask indicates a run was requested without a task.
	ErrEmptyTask = errors.New("task cannot be empty")
)

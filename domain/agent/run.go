package agent

import (
	"time"
)

// RunStatus represents the outcome of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"   // Not yet started
	RunStatusRunning   RunStatus = "running"   // Loop executing
	RunStatusCompleted RunStatus = "completed" // Final answer produced
	RunStatusExhausted RunStatus = "exhausted" // Iteration budget reached without an answer
	RunStatusFailed    RunStatus = "failed"    // Timeout, cancellation or model failure
)

// Run is a single execution of the reasoning loop.
type Run struct {
	ID           string    `json:"id"`
	Task         string    `json:"task"`
	CurrentState State     `json:"current_state"`
	Status       RunStatus `json:"status"`
	Iterations   int       `json:"iterations"`
	Steps        []Step    `json:"steps"`
	Answer       string    `json:"answer,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time,omitempty"`
}

// NewRun creates a pending run for the task.
func NewRun(id, task string) *Run {
	return &Run{
		ID:           id,
		Task:         task,
		CurrentState: StateThinking,
		Status:       RunStatusPending,
		Steps:        make([]Step, 0),
	}
}

// Start marks the run as running.
func (r *Run) Start() {
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// TransitionTo changes the current state.
func (r *Run) TransitionTo(state State) {
	r.CurrentState = state
}

// AddStep appends a transcript entry.
func (r *Run) AddStep(step Step) {
	r.Steps = append(r.Steps, step)
}

// Complete marks the run as finished with a final answer.
func (r *Run) Complete(answer string) {
	r.Status = RunStatusCompleted
	r.CurrentState = StateDone
	r.Answer = answer
	r.EndTime = time.Now()
}

// Exhaust marks the run as stopped by its iteration budget.
func (r *Run) Exhaust() {
	r.Status = RunStatusExhausted
	r.CurrentState = StateFailed
	r.Error = ErrBudgetExhausted.Error()
	r.EndTime = time.Now()
}

// Fail marks the run as failed with an error.
func (r *Run) Fail(err string) {
	r.Status = RunStatusFailed
	r.CurrentState = StateFailed
	r.Error = err
	r.EndTime = time.Now()
}

// IsTerminal returns true once the run has an outcome.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusExhausted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// LastStep returns the most recent transcript entry.
func (r *Run) LastStep() (Step, bool) {
	if len(r.Steps) == 0 {
		return Step{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// ToolCalls returns the names of the tools invoked, in order.
func (r *Run) ToolCalls() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.HasAction() {
			names = append(names, s.Action)
		}
	}
	return names
}

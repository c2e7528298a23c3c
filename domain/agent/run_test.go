package agent

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRun(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "analyze ad.jpg")

	if run.CurrentState != StateThinking {
		t.Errorf("CurrentState = %s, want %s", run.CurrentState, StateThinking)
	}
	if run.Status != RunStatusPending {
		t.Errorf("Status = %s, want %s", run.Status, RunStatusPending)
	}
	if run.IsTerminal() {
		t.Error("new run should not be terminal")
	}
}

func TestRun_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		apply  func(*Run)
		status RunStatus
		state  State
	}{
		{"complete", func(r *Run) { r.Complete("CONFORME") }, RunStatusCompleted, StateDone},
		{"exhaust", func(r *Run) { r.Exhaust() }, RunStatusExhausted, StateFailed},
		{"fail", func(r *Run) { r.Fail("boom") }, RunStatusFailed, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run := NewRun("run-1", "task")
			run.Start()
			tt.apply(run)

			if run.Status != tt.status {
				t.Errorf("Status = %s, want %s", run.Status, tt.status)
			}
			if run.CurrentState != tt.state {
				t.Errorf("CurrentState = %s, want %s", run.CurrentState, tt.state)
			}
			if !run.IsTerminal() {
				t.Error("run should be terminal")
			}
			if run.EndTime.IsZero() {
				t.Error("EndTime should be set")
			}
		})
	}
}

func TestRun_ExhaustSetsDistinctError(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "task")
	run.Exhaust()

	if run.Error != ErrBudgetExhausted.Error() {
		t.Errorf("Error = %q, want %q", run.Error, ErrBudgetExhausted.Error())
	}
}

func TestRun_ToolCalls(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "task")
	run.AddStep(Step{Iteration: 1, Action: "extract_raw_text", Observation: "text"})
	run.AddStep(Step{Iteration: 2, Observation: "format error", IsError: true})
	run.AddStep(Step{Iteration: 3, Action: "analyze_vision", Input: json.RawMessage(`{}`), Observation: "desc"})

	got := run.ToolCalls()
	if len(got) != 2 || got[0] != "extract_raw_text" || got[1] != "analyze_vision" {
		t.Errorf("ToolCalls() = %v, want [extract_raw_text analyze_vision]", got)
	}

	last, ok := run.LastStep()
	if !ok || last.Iteration != 3 {
		t.Errorf("LastStep() = %+v, %v", last, ok)
	}
}

func TestRun_Duration(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "task")
	if run.Duration() != 0 {
		t.Errorf("Duration() before start = %v, want 0", run.Duration())
	}

	run.StartTime = time.Now().Add(-2 * time.Second)
	run.EndTime = run.StartTime.Add(time.Second)
	if run.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", run.Duration())
	}
}

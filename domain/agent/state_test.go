package agent

import "testing"

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateThinking, false},
		{StateActing, false},
		{StateDone, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State(%q).IsTerminal() = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("State(%q).IsValid() = false, want true", s)
		}
	}
	if State("explore").IsValid() {
		t.Error("State(explore).IsValid() = true, want false")
	}
}

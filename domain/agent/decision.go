package agent

import "encoding/json"

// DecisionType identifies the kind of decision returned by a thought step.
type DecisionType string

const (
	DecisionCallTool DecisionType = "call_tool" // Invoke a tool
	DecisionFinish   DecisionType = "finish"    // Emit the final answer
)

// Decision is the typed action-or-answer result of a thought step.
// Exactly one of CallTool or Finish is set.
type Decision struct {
	Type     DecisionType
	Thought  string
	CallTool *CallToolDecision
	Finish   *FinishDecision
}

// CallToolDecision instructs the loop to execute a tool.
type CallToolDecision struct {
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input"`
	Reason   string          `json:"reason"`
}

// FinishDecision carries the final answer.
type FinishDecision struct {
	Answer string `json:"answer"`
}

// NewCallToolDecision creates a decision to execute a tool.
func NewCallToolDecision(toolName string, input json.RawMessage, reason string) Decision {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return Decision{
		Type:    DecisionCallTool,
		Thought: reason,
		CallTool: &CallToolDecision{
			ToolName: toolName,
			Input:    input,
			Reason:   reason,
		},
	}
}

// NewFinishDecision creates a decision that ends the run with an answer.
func NewFinishDecision(answer, thought string) Decision {
	return Decision{
		Type:    DecisionFinish,
		Thought: thought,
		Finish:  &FinishDecision{Answer: answer},
	}
}

// IsFinal reports whether the decision ends the loop.
func (d Decision) IsFinal() bool {
	return d.Type == DecisionFinish
}

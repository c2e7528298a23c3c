package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
)

// LLMPlanner asks a chat model for the next decision using a ReAct style
// transcript and a JSON decision protocol.
type LLMPlanner struct {
	model          model.Model
	instruction    string
	maxObservation int
}

// LLMPlannerConfig configures the LLM planner.
type LLMPlannerConfig struct {
	Model model.Model
	// Instruction is the domain system prompt. The response protocol is
	// appended to it.
	Instruction string
	// MaxObservation truncates observations replayed in the transcript.
	// Zero uses 4000 characters.
	MaxObservation int
}

// ResponseFormat is the decision protocol appended to the system prompt.
const ResponseFormat = `## Format de réponse

Réponds UNIQUEMENT avec un objet JSON, sans texte autour, dans l'un de ces formats :

{"decision": "call_tool", "tool_name": "<nom>", "input": {...}, "reason": "<pourquoi>"}
{"decision": "finish", "answer": "<réponse finale>", "reason": "<pourquoi>"}`

// NewLLMPlanner creates a new LLM-based planner.
func NewLLMPlanner(config LLMPlannerConfig) *LLMPlanner {
	maxObs := config.MaxObservation
	if maxObs <= 0 {
		maxObs = 4000
	}
	return &LLMPlanner{
		model:          config.Model,
		instruction:    config.Instruction,
		maxObservation: maxObs,
	}
}

// Plan implements the Planner interface. A model failure is returned as is;
// output that cannot be parsed is returned as a *FormatError.
func (p *LLMPlanner) Plan(ctx context.Context, req PlanRequest) (agent.Decision, error) {
	messages := p.buildMessages(req)

	logging.Debug().
		Add(logging.RunID(req.RunID)).
		Add(logging.Iteration(req.Iteration)).
		Msg("requesting LLM decision")

	resp, err := p.model.Chat(ctx, messages)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	decision, err := ParseDecision(resp.Text)
	if err != nil {
		return agent.Decision{}, err
	}

	logging.Debug().
		Add(logging.RunID(req.RunID)).
		Add(logging.Decision(decision.Type)).
		Msg("LLM decision received")

	return decision, nil
}

// buildMessages replays the transcript: each step becomes the assistant's
// decision followed by the observation as a user message.
func (p *LLMPlanner) buildMessages(req PlanRequest) []model.Message {
	system := strings.TrimSpace(p.instruction)
	if system != "" {
		system += "\n\n"
	}
	system += describeTools(req.Tools) + "\n\n" + ResponseFormat

	messages := []model.Message{
		model.SystemMessage(system),
		model.UserMessage(model.Text(req.Task)),
	}

	for _, step := range req.Steps {
		messages = append(messages,
			model.AssistantMessage(encodeStep(step)),
			model.UserMessage(model.Text(p.observation(step))),
		)
	}

	if req.MaxIterations > 0 {
		messages = append(messages, model.UserMessage(model.Text(fmt.Sprintf(
			"Étape %d sur %d. Quelle est ta prochaine décision ? Réponds en JSON uniquement.",
			req.Iteration, req.MaxIterations,
		))))
	}
	return messages
}

func describeTools(tools []ToolInfo) string {
	var sb strings.Builder
	sb.WriteString("## Outils disponibles\n")
	for _, t := range tools {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		if t.Description != "" {
			sb.WriteString(" : ")
			sb.WriteString(t.Description)
		}
		if len(t.Schema) > 0 {
			sb.WriteString("\n  paramètres : ")
			sb.Write(t.Schema)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func encodeStep(step agent.Step) string {
	if !step.HasAction() {
		// a format error: replay the raw output so the model sees its mistake
		return step.Thought
	}
	input := step.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	out, err := json.Marshal(llmResponse{
		Decision: string(agent.DecisionCallTool),
		ToolName: step.Action,
		Input:    input,
		Reason:   step.Thought,
	})
	if err != nil {
		return step.Thought
	}
	return string(out)
}

func (p *LLMPlanner) observation(step agent.Step) string {
	prefix := "Observation : "
	if step.IsError {
		prefix = "Erreur : "
	}
	return prefix + truncate(step.Observation, p.maxObservation)
}

// llmResponse represents the expected JSON response from the LLM.
type llmResponse struct {
	Decision string          `json:"decision"`
	ToolName string          `json:"tool_name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Answer   string          `json:"answer,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// ParseDecision parses model output into a Decision. Markdown code fences
// and prose around the JSON object are tolerated.
func ParseDecision(content string) (agent.Decision, error) {
	raw := extractJSON(content)

	var resp llmResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return agent.Decision{}, &FormatError{Output: content, Err: err}
	}

	switch agent.DecisionType(resp.Decision) {
	case agent.DecisionCallTool:
		if resp.ToolName == "" {
			return agent.Decision{}, &FormatError{Output: content, Err: errors.New("missing tool_name")}
		}
		return agent.NewCallToolDecision(resp.ToolName, resp.Input, resp.Reason), nil

	case agent.DecisionFinish:
		if strings.TrimSpace(resp.Answer) == "" {
			return agent.Decision{}, &FormatError{Output: content, Err: errors.New("missing answer")}
		}
		return agent.NewFinishDecision(resp.Answer, resp.Reason), nil

	default:
		return agent.Decision{}, &FormatError{Output: content, Err: fmt.Errorf("unknown decision type %q", resp.Decision)}
	}
}

// extractJSON strips code fences and returns the outermost {...} span.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

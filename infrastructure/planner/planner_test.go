package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
)

func TestParseDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		wantType agent.DecisionType
		wantTool string
		wantErr  bool
	}{
		{
			name:     "call tool",
			content:  `{"decision": "call_tool", "tool_name": "analyze_vision", "input": {"image_path": "a.png"}, "reason": "décrire"}`,
			wantType: agent.DecisionCallTool,
			wantTool: "analyze_vision",
		},
		{
			name:     "fenced json",
			content:  "```json\n{\"decision\": \"finish\", \"answer\": \"NON CONFORME\"}\n```",
			wantType: agent.DecisionFinish,
		},
		{
			name:     "prose around json",
			content:  "Pensée : je dois extraire le texte.\n{\"decision\": \"call_tool\", \"tool_name\": \"extract_raw_text\"}",
			wantType: agent.DecisionCallTool,
			wantTool: "extract_raw_text",
		},
		{name: "not json", content: "Je vais analyser l'image.", wantErr: true},
		{name: "unknown decision", content: `{"decision": "transition"}`, wantErr: true},
		{name: "missing tool", content: `{"decision": "call_tool"}`, wantErr: true},
		{name: "empty answer", content: `{"decision": "finish", "answer": " "}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := ParseDecision(tt.content)
			if tt.wantErr {
				if !IsFormatError(err) {
					t.Fatalf("ParseDecision() error = %v, want format error", err)
				}
				var fe *FormatError
				if !errors.As(err, &fe) || fe.Output != tt.content {
					t.Errorf("FormatError.Output = %v, want raw content", fe)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecision() error = %v", err)
			}
			if d.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", d.Type, tt.wantType)
			}
			if tt.wantTool != "" && d.CallTool.ToolName != tt.wantTool {
				t.Errorf("ToolName = %s, want %s", d.CallTool.ToolName, tt.wantTool)
			}
			if d.Type == agent.DecisionCallTool && len(d.CallTool.Input) == 0 {
				t.Errorf("Input is empty, want {}")
			}
		})
	}
}

func TestLLMPlanner_BuildsTranscript(t *testing.T) {
	t.Parallel()

	m := modelinfra.NewScripted(`{"decision": "finish", "answer": "CONFORME"}`)
	p := NewLLMPlanner(LLMPlannerConfig{Model: m, Instruction: "Tu es un agent.", MaxObservation: 10})

	d, err := p.Plan(context.Background(), PlanRequest{
		RunID:         "run-1",
		Task:          "Analyse cette image publicitaire : a.png",
		Iteration:     3,
		MaxIterations: 30,
		Tools:         []ToolInfo{{Name: "analyze_vision", Description: "Décrit l'image", Schema: json.RawMessage(`{"type":"object"}`)}},
		Steps: []agent.Step{
			{Iteration: 1, Action: "analyze_vision", Input: json.RawMessage(`{}`), Observation: "CONTENU VISUEL : une voiture rouge"},
			{Iteration: 2, Thought: "pas du json", Observation: "format error", IsError: true},
		},
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !d.IsFinal() || d.Finish.Answer != "CONFORME" {
		t.Errorf("decision = %+v, want finish CONFORME", d)
	}

	msgs := m.Calls()[0]
	if len(msgs) != 7 {
		t.Fatalf("len(messages) = %d, want 7", len(msgs))
	}
	sys := msgs[0].TextContent()
	for _, want := range []string{"Tu es un agent.", "- analyze_vision : Décrit l'image", `"decision": "call_tool"`} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if msgs[2].Role != model.RoleAssistant || !strings.Contains(msgs[2].TextContent(), `"tool_name":"analyze_vision"`) {
		t.Errorf("assistant replay = %q", msgs[2].TextContent())
	}
	if got := msgs[3].TextContent(); got != "Observation : CONTENU VI..." {
		t.Errorf("observation = %q, want truncated observation", got)
	}
	if got := msgs[4].TextContent(); got != "pas du json" {
		t.Errorf("format error replay = %q", got)
	}
	if got := msgs[5].TextContent(); !strings.HasPrefix(got, "Erreur : ") {
		t.Errorf("error observation = %q, want Erreur prefix", got)
	}
	if got := msgs[6].TextContent(); !strings.Contains(got, "Étape 3 sur 30") {
		t.Errorf("last message = %q", got)
	}
}

func TestLLMPlanner_ModelFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("503")
	m := modelinfra.NewScripted()
	m.Enqueue(modelinfra.Reply{Err: boom})
	p := NewLLMPlanner(LLMPlannerConfig{Model: m})

	_, err := p.Plan(context.Background(), PlanRequest{Task: "t"})
	if !errors.Is(err, boom) {
		t.Errorf("Plan() error = %v, want %v", err, boom)
	}
	if IsFormatError(err) {
		t.Errorf("model failure reported as a format error")
	}
}

func TestScriptedPlanner(t *testing.T) {
	t.Parallel()

	checkErr := errors.New("wrong iteration")
	p := NewScriptedPlanner(
		Call("analyze_vision", `{"image_path":"a.png"}`),
		ScriptStep{Decision: agent.NewFinishDecision("ok", ""), Check: func(req PlanRequest) error {
			if req.Iteration != 2 {
				return checkErr
			}
			return nil
		}},
	)
	ctx := context.Background()

	d, err := p.Plan(ctx, PlanRequest{Iteration: 1})
	if err != nil || d.CallTool.ToolName != "analyze_vision" {
		t.Fatalf("first Plan() = %+v, %v", d, err)
	}
	d, err = p.Plan(ctx, PlanRequest{Iteration: 2})
	if err != nil || !d.IsFinal() {
		t.Fatalf("second Plan() = %+v, %v", d, err)
	}
	if !p.IsComplete() || p.CurrentStep() != 2 {
		t.Errorf("planner not complete after two steps")
	}
	if _, err := p.Plan(ctx, PlanRequest{}); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("exhausted Plan() error = %v, want %v", err, ErrScriptExhausted)
	}
	if got := len(p.Requests()); got != 3 {
		t.Errorf("len(Requests) = %d, want 3", got)
	}
}

package planner

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// ScriptStep is one scripted planner answer.
type ScriptStep struct {
	// Decision is the decision to return.
	Decision agent.Decision

	// Err, when set, is returned instead of the decision.
	Err error

	// Check is an optional assertion on the request.
	Check func(PlanRequest) error
}

// ScriptedPlanner returns a predefined sequence of decisions for
// deterministic tests. It records every request it receives.
type ScriptedPlanner struct {
	steps       []ScriptStep
	index       int
	onExhausted func(PlanRequest) (agent.Decision, error)
	requests    []PlanRequest
	mu          sync.Mutex
}

// NewScriptedPlanner creates a scripted planner with the given steps.
func NewScriptedPlanner(steps ...ScriptStep) *ScriptedPlanner {
	return &ScriptedPlanner{
		steps: steps,
		onExhausted: func(PlanRequest) (agent.Decision, error) {
			return agent.Decision{}, ErrScriptExhausted
		},
	}
}

// Call is a shorthand step calling a tool.
func Call(tool, input string) ScriptStep {
	return ScriptStep{Decision: agent.NewCallToolDecision(tool, []byte(input), "")}
}

// Finish is a shorthand step finishing with answer.
func Finish(answer string) ScriptStep {
	return ScriptStep{Decision: agent.NewFinishDecision(answer, "")}
}

// OnExhausted sets the handler used once every step has been returned.
func (p *ScriptedPlanner) OnExhausted(handler func(PlanRequest) (agent.Decision, error)) *ScriptedPlanner {
	p.onExhausted = handler
	return p
}

// Plan returns the next scripted decision.
func (p *ScriptedPlanner) Plan(_ context.Context, req PlanRequest) (agent.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.index >= len(p.steps) {
		return p.onExhausted(req)
	}

	step := p.steps[p.index]
	p.index++

	if step.Check != nil {
		if err := step.Check(req); err != nil {
			return agent.Decision{}, err
		}
	}
	if step.Err != nil {
		return agent.Decision{}, step.Err
	}
	return step.Decision, nil
}

// Requests returns the requests received so far.
func (p *ScriptedPlanner) Requests() []PlanRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlanRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// CurrentStep returns the current step index.
func (p *ScriptedPlanner) CurrentStep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// IsComplete returns true if all steps have been executed.
func (p *ScriptedPlanner) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index >= len(p.steps)
}

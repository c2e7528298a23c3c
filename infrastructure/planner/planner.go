// Package planner decides the next step of the reasoning loop.
package planner

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// ToolInfo describes a tool offered to the planner.
type ToolInfo struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// PlanRequest contains all information needed for planning.
type PlanRequest struct {
	RunID         string
	Task          string
	Iteration     int // 1-based think step
	MaxIterations int
	Tools         []ToolInfo
	Steps         []agent.Step // transcript so far, oldest first
}

// Planner is the interface for decision engines.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (agent.Decision, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, req PlanRequest) (agent.Decision, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, req PlanRequest) (agent.Decision, error) {
	return f(ctx, req)
}

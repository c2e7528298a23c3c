// Package middleware provides composable wrappers around tool execution.
package middleware

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

// ExecutionContext carries what a middleware may need about the call.
type ExecutionContext struct {
	// RunID identifies the run.
	RunID string
	// File is the input file under analysis.
	File string
	// Iteration is the 1-based loop iteration issuing the call.
	Iteration int
	// CurrentState is the loop state at call time.
	CurrentState agent.State
	// Tool is the tool being executed.
	Tool tool.Tool
	// Input is the JSON input for the tool.
	Input json.RawMessage
	// Reason is the planner's stated reason for the call.
	Reason string
}

// Handler executes a tool and returns its result.
type Handler func(ctx context.Context, execCtx *ExecutionContext) (tool.Result, error)

// Middleware wraps a Handler with additional behavior.
type Middleware func(next Handler) Handler

// Chain composes middleware so that Chain(A, B, C) runs A -> B -> C -> handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that passes through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}

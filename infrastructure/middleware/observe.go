package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

// StageName returns the stage a tool reports under: its Stage annotation,
// or its name when it has none.
func StageName(t tool.Tool) string {
	if s := t.Annotations().Stage; s != "" {
		return s
	}
	return t.Name()
}

// Observe returns middleware that notifies the observer around each tool
// call and puts the stage on the context so model usage made by the tool
// is attributed to it. Observer failures never reach the tool.
func Observe(n *event.Notifier) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			stage := event.Stage{
				RunID:     execCtx.RunID,
				File:      execCtx.File,
				Name:      StageName(execCtx.Tool),
				Iteration: execCtx.Iteration,
			}
			ctx = event.WithStage(ctx, stage)

			n.Enter(ctx, stage)
			start := time.Now()
			result, err := next(ctx, execCtx)
			n.Exit(ctx, stage, event.StageResult{
				Duration: time.Since(start),
				Err:      err,
				Cached:   result.Cached,
			})
			return result, err
		}
	}
}

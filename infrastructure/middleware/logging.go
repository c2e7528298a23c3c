// Package middleware provides the tool execution middleware of the loop.
package middleware

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
)

// LoggingConfig configures the logging middleware.
type LoggingConfig struct {
	// LogInput logs the tool input.
	LogInput bool
	// LogOutput logs the tool output (may be large).
	LogOutput bool
}

// Logging returns middleware that logs tool execution.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			start := time.Now()

			entry := logging.Info().
				Add(logging.RunID(execCtx.RunID)).
				Add(logging.Iteration(execCtx.Iteration)).
				Add(logging.ToolName(execCtx.Tool.Name()))
			if cfg.LogInput && len(execCtx.Input) > 0 {
				entry = entry.Add(logging.Str("input", string(execCtx.Input)))
			}
			entry.Msg("executing tool")

			result, err := next(ctx, execCtx)
			duration := time.Since(start)

			if err != nil {
				logging.Warn().
					Add(logging.RunID(execCtx.RunID)).
					Add(logging.ToolName(execCtx.Tool.Name())).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("tool execution failed")
				return result, err
			}

			logEntry := logging.Info().
				Add(logging.RunID(execCtx.RunID)).
				Add(logging.ToolName(execCtx.Tool.Name())).
				Add(logging.Duration(duration)).
				Add(logging.Cached(result.Cached))
			if cfg.LogOutput && result.Output != "" {
				logEntry = logEntry.Add(logging.Str("output", truncate(result.Output, 500)))
			}
			logEntry.Msg("tool executed")

			return result, nil
		}
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

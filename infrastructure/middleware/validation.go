package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

// Validation returns middleware that rejects input that is not a JSON
// object or that misses a required argument, before the tool runs.
// Empty input is treated as {}.
func Validation() middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			input := execCtx.Input
			if len(input) == 0 || string(input) == "null" {
				input = json.RawMessage(`{}`)
				execCtx.Input = input
			}
			if !json.Valid(input) {
				return tool.Result{}, fmt.Errorf("%w: input is not valid JSON", tool.ErrInvalidInput)
			}
			if err := execCtx.Tool.InputSchema().Validate(input); err != nil {
				return tool.Result{}, err
			}
			return next(ctx, execCtx)
		}
	}
}

package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer to use.
	TracerName string

	// Tracer is a custom tracer to use. If nil, the global provider is used.
	Tracer trace.Tracer

	// RecordInput records tool input as a span attribute.
	RecordInput bool

	// RecordOutput records tool output as a span attribute.
	RecordOutput bool

	// MaxAttributeSize limits the size of recorded attributes.
	MaxAttributeSize int

	// SpanNamePrefix is prepended to span names.
	SpanNamePrefix string
}

// DefaultTracingConfig returns a sensible default configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:       "adcompliance",
		RecordInput:      true,
		MaxAttributeSize: 1024,
		SpanNamePrefix:   "tool.",
	}
}

// Tracing returns middleware that creates an OpenTelemetry span per tool call.
func Tracing(cfg TracingConfig) middleware.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		name := cfg.TracerName
		if name == "" {
			name = "adcompliance"
		}
		tracer = otel.Tracer(name)
	}

	maxSize := cfg.MaxAttributeSize
	if maxSize <= 0 {
		maxSize = 1024
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			ctx, span := tracer.Start(ctx, cfg.SpanNamePrefix+execCtx.Tool.Name(),
				trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			annotations := execCtx.Tool.Annotations()
			attrs := []attribute.KeyValue{
				attribute.String("agent.run_id", execCtx.RunID),
				attribute.Int("agent.iteration", execCtx.Iteration),
				attribute.String("tool.name", execCtx.Tool.Name()),
				attribute.String("tool.stage", annotations.Stage),
				attribute.Bool("tool.read_only", annotations.ReadOnly),
			}
			if execCtx.File != "" {
				attrs = append(attrs, attribute.String("analysis.file", execCtx.File))
			}
			if execCtx.Reason != "" {
				attrs = append(attrs, attribute.String("tool.reason", truncate(execCtx.Reason, maxSize)))
			}
			if cfg.RecordInput && len(execCtx.Input) > 0 {
				attrs = append(attrs, attribute.String("tool.input", truncate(string(execCtx.Input), maxSize)))
			}
			span.SetAttributes(attrs...)

			result, err := next(ctx, execCtx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}

			span.SetStatus(codes.Ok, "")
			if cfg.RecordOutput && result.Output != "" {
				span.SetAttributes(attribute.String("tool.output", truncate(result.Output, maxSize)))
			}
			span.SetAttributes(
				attribute.Int64("tool.duration_ms", result.Duration.Milliseconds()),
				attribute.Bool("tool.cached", result.Cached),
			)
			return result, nil
		}
	}
}

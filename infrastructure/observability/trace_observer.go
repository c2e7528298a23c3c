package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/adcompliance/domain/event"
)

// TraceObserver opens one span per stage, named "stage.<name>".
type TraceObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[spanKey]trace.Span
}

type spanKey struct {
	runID     string
	name      string
	iteration int
}

// NewTraceObserver creates an observer that starts spans with tracer.
func NewTraceObserver(tracer trace.Tracer) *TraceObserver {
	return &TraceObserver{tracer: tracer, spans: make(map[spanKey]trace.Span)}
}

// StageEnter implements event.Observer.
func (o *TraceObserver) StageEnter(ctx context.Context, stage event.Stage) error {
	_, span := o.tracer.Start(ctx, "stage."+stage.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agent.run_id", stage.RunID),
			attribute.String("analysis.file", stage.File),
			attribute.String("analysis.stage", stage.Name),
			attribute.Int("agent.iteration", stage.Iteration),
		),
	)

	o.mu.Lock()
	o.spans[keyOf(stage)] = span
	o.mu.Unlock()
	return nil
}

// StageExit implements event.Observer. An exit without a matching enter is
// ignored.
func (o *TraceObserver) StageExit(_ context.Context, stage event.Stage, result event.StageResult) error {
	key := keyOf(stage)
	o.mu.Lock()
	span, ok := o.spans[key]
	delete(o.spans, key)
	o.mu.Unlock()
	if !ok {
		return nil
	}

	span.SetAttributes(
		attribute.Int64("stage.duration_ms", result.Duration.Milliseconds()),
		attribute.Bool("stage.cached", result.Cached),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return nil
}

// Open returns the number of stages entered but not exited.
func (o *TraceObserver) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.spans)
}

func keyOf(s event.Stage) spanKey {
	return spanKey{runID: s.RunID, name: s.Name, iteration: s.Iteration}
}

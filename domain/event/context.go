package event

import "context"

type stageKey struct{}

// WithStage returns a context carrying the stage being executed. Model
// decorators read it to attribute usage.
func WithStage(ctx context.Context, stage Stage) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage carried by ctx, if any.
func StageFrom(ctx context.Context) (Stage, bool) {
	stage, ok := ctx.Value(stageKey{}).(Stage)
	return stage, ok
}

// StageNameFrom returns the stage name carried by ctx, or StageOther.
func StageNameFrom(ctx context.Context) string {
	if stage, ok := StageFrom(ctx); ok && stage.Name != "" {
		return stage.Name
	}
	return StageOther
}

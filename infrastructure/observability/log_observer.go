package observability

import (
	"context"

	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
)

// LogObserver logs every stage boundary.
type LogObserver struct{}

// NewLogObserver creates a log observer.
func NewLogObserver() *LogObserver {
	return &LogObserver{}
}

// StageEnter implements event.Observer.
func (o *LogObserver) StageEnter(_ context.Context, stage event.Stage) error {
	logging.Debug().
		Add(logging.RunID(stage.RunID)).
		Add(logging.File(stage.File)).
		Add(logging.Stage(stage.Name)).
		Add(logging.Iteration(stage.Iteration)).
		Msg("stage started")
	return nil
}

// StageExit implements event.Observer.
func (o *LogObserver) StageExit(_ context.Context, stage event.Stage, result event.StageResult) error {
	if result.Failed() {
		logging.Warn().
			Add(logging.RunID(stage.RunID)).
			Add(logging.Stage(stage.Name)).
			Add(logging.Iteration(stage.Iteration)).
			Add(logging.Duration(result.Duration)).
			Add(logging.ErrorField(result.Err)).
			Msg("stage failed")
		return nil
	}
	logging.Info().
		Add(logging.RunID(stage.RunID)).
		Add(logging.Stage(stage.Name)).
		Add(logging.Iteration(stage.Iteration)).
		Add(logging.Duration(result.Duration)).
		Add(logging.Cached(result.Cached)).
		Msg("stage completed")
	return nil
}

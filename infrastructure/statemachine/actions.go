package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// syncState mirrors the entered state onto the run. Actions receive a
// pointer to the context, so with a *Context context they get **Context.
func syncState(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Run == nil {
		return
	}
	if to := stateFromEventType(event.Type); to != "" {
		(*ctx).Run.TransitionTo(to)
	}
}

package event

import "errors"

// ErrObserverPanic wraps a panic recovered from an observer hook.
var ErrObserverPanic = errors.New("observer panicked")

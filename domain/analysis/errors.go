package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPrecondition is matched by every PreconditionError.
var ErrPrecondition = errors.New("stage precondition not met")

// AlreadyAsked is returned by the clarification tool instead of a new model
// call when the same questions were already submitted in the run.
const AlreadyAsked = "Ces questions ont déjà été posées. Posez des questions différentes ou passez à l'étape suivante."

// PreconditionError reports a stage invoked before the state it depends on
// was populated.
type PreconditionError struct {
	Stage   Stage
	Missing []Stage
}

// Error implements error.
func (e *PreconditionError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		missing[i] = string(m)
	}
	return fmt.Sprintf("%s: %s requires %s", ErrPrecondition, e.Stage, strings.Join(missing, ", "))
}

// Is makes errors.Is(err, ErrPrecondition) succeed.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// IsPrecondition reports whether err is a precondition violation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

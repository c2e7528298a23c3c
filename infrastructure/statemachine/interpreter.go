package statemachine

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// Interpreter wraps the statekit interpreter for one run.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter bound to ctx.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start enters the initial state and marks the run as running.
func (i *Interpreter) Start() {
	i.interp.Start()
	i.ctx.Run.TransitionTo(i.State())
	i.ctx.Run.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current state.
func (i *Interpreter) State() agent.State {
	return StateFromMachine(i.interp.State().Value)
}

// Transition sends the event leading to state to and reports an
// agent.ErrInvalidTransition when the machine did not move there, either
// because no such edge exists or because a guard rejected it.
func (i *Interpreter) Transition(to agent.State) error {
	from := i.State()
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", agent.ErrRunTerminated, from)
	}

	if !HasEdge(from, to) {
		return fmt.Errorf("%w: %s to %s", agent.ErrInvalidTransition, from, to)
	}

	i.interp.Send(statekit.Event{Type: EventForTransition(to)})

	now := i.State()
	i.ctx.Run.TransitionTo(now)
	if now != to {
		return fmt.Errorf("%w: %s to %s", agent.ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal returns true if the interpreter is in a final state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Matches checks if the current state matches the given state.
func (i *Interpreter) Matches(state agent.State) bool {
	return i.interp.Matches(statekit.StateID(state))
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}

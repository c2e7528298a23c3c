// Package statemachine provides the statekit statechart driving the
// reasoning loop.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// Context carries run state through the state machine.
type Context struct {
	Run           *agent.Run
	MaxIterations int // 0 = unlimited
}

// NewContext creates a new machine context.
func NewContext(run *agent.Run, maxIterations int) *Context {
	return &Context{
		Run:           run,
		MaxIterations: maxIterations,
	}
}

// Events understood by the machine.
const (
	EventAct     statekit.EventType = "ACT"
	EventObserve statekit.EventType = "OBSERVE"
	EventAnswer  statekit.EventType = "ANSWER"
	EventFail    statekit.EventType = "FAIL"
)

const (
	stateThinking statekit.StateID = statekit.StateID(agent.StateThinking)
	stateActing   statekit.StateID = statekit.StateID(agent.StateActing)
	stateDone     statekit.StateID = statekit.StateID(agent.StateDone)
	stateFailed   statekit.StateID = statekit.StateID(agent.StateFailed)
)

// NewLoopMachine creates the reasoning loop statechart:
//
//	thinking --ACT[withinBudget]--> acting --OBSERVE--> thinking
//	thinking --ANSWER--> done
//	thinking|acting --FAIL--> failed
func NewLoopMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("reasoning-loop").
		WithInitial(stateThinking).
		WithContext(&Context{}).
		WithAction("syncState", syncState).
		WithGuard("withinBudget", guardWithinBudget).
		State(stateThinking).
			OnEntry("syncState").
			On(EventAct).Target(stateActing).Guard("withinBudget").
			On(EventAnswer).Target(stateDone).
			On(EventFail).Target(stateFailed).
			Done().
		State(stateActing).
			OnEntry("syncState").
			On(EventObserve).Target(stateThinking).
			On(EventFail).Target(stateFailed).
			Done().
		State(stateDone).
			Final().
			OnEntry("syncState").
			Done().
		State(stateFailed).
			Final().
			OnEntry("syncState").
			Done().
		Build()
}

var edges = map[agent.State][]agent.State{
	agent.StateThinking: {agent.StateActing, agent.StateDone, agent.StateFailed},
	agent.StateActing:   {agent.StateThinking, agent.StateFailed},
}

// HasEdge reports whether the statechart declares a transition from one
// state to another, guards aside.
func HasEdge(from, to agent.State) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventForTransition returns the event that moves the loop into state to.
func EventForTransition(to agent.State) statekit.EventType {
	switch to {
	case agent.StateActing:
		return EventAct
	case agent.StateThinking:
		return EventObserve
	case agent.StateDone:
		return EventAnswer
	case agent.StateFailed:
		return EventFail
	default:
		return statekit.EventType(to)
	}
}

// StateFromMachine converts the machine state ID to domain State.
func StateFromMachine(stateID statekit.StateID) agent.State {
	return agent.State(stateID)
}

package route

import (
	"fmt"
	"slices"
)

// State is a stage of one routed query.
type State string

// Router states.
const (
	StateStart           State = "start"
	StateClassifying     State = "classifying"
	StateExecutingSimple State = "executing_simple"
	StateBuildingContext State = "building_context"
	StateInvokingModel   State = "invoking_model"
	StateFormatting      State = "formatting"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// transitions lists the legal successors of each state. Failed is reachable
// from every non-terminal state and is not listed.
var transitions = map[State][]State{
	StateStart:           {StateClassifying},
	StateClassifying:     {StateExecutingSimple, StateBuildingContext},
	StateExecutingSimple: {StateBuildingContext, StateFormatting},
	StateBuildingContext: {StateInvokingModel, StateFormatting},
	StateInvokingModel:   {StateFormatting},
	StateFormatting:      {StateDone},
}

func canTransition(from, to State) bool {
	if from == StateDone || from == StateFailed {
		return false
	}
	if to == StateFailed {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// machine tracks the state of one execution. Not safe for concurrent use.
type machine struct {
	current State
	trace   []State
}

func newMachine() *machine {
	return &machine{current: StateStart, trace: []State{StateStart}}
}

// to moves to next. Staying in the current state is a no-op. An illegal
// transition is a programming error and panics.
func (m *machine) to(next State) {
	if next == m.current {
		return
	}
	if !canTransition(m.current, next) {
		panic(fmt.Sprintf("route: illegal transition %s -> %s", m.current, next))
	}
	m.current = next
	m.trace = append(m.trace, next)
}

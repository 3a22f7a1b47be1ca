package power

import (
	"errors"
	"fmt"
)

// State is a step of the sequencer lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateWaitingForButton
	StateEnteringLowPower
	StateAsleep
	StateResuming
	StateEnteringStandby
	StateReset
)

var stateNames = map[State]string{
	StateIdle:             "Idle",
	StateWaitingForButton: "WaitingForButton",
	StateEnteringLowPower: "EnteringLowPower",
	StateAsleep:           "Asleep",
	StateResuming:         "Resuming",
	StateEnteringStandby:  "EnteringStandby",
	StateReset:            "Reset",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// ErrIllegalTransition is returned when a step is requested out of order.
var ErrIllegalTransition = errors.New("power: illegal state transition")

// transitions lists the successors allowed from each state. STOP cycles
// through Asleep and Resuming back to Idle; STANDBY ends in Reset.
var transitions = map[State][]State{
	StateIdle:             {StateWaitingForButton, StateEnteringLowPower, StateEnteringStandby},
	StateWaitingForButton: {StateEnteringLowPower, StateEnteringStandby},
	StateEnteringLowPower: {StateAsleep},
	StateAsleep:           {StateResuming},
	StateResuming:         {StateIdle},
	StateEnteringStandby:  {StateReset},
	StateReset:            {},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine tracks the sequencer state. It performs no I/O.
type StateMachine struct {
	state   State
	history []State
}

// NewStateMachine returns a machine in Idle.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle, history: []State{StateIdle}}
}

// State reports the current state.
func (m *StateMachine) State() State {
	return m.state
}

// History returns every state visited, starting with Idle.
func (m *StateMachine) History() []State {
	return append([]State(nil), m.history...)
}

// Transition moves to next or returns ErrIllegalTransition, leaving the
// state unchanged.
func (m *StateMachine) Transition(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

package ordersync

import (
	"errors"
	"fmt"
)

// State is a step of a single order synchronization.
type State string

const (
	StateStart              State = "start"
	StateRecordPersisted    State = "record_persisted"
	StateSessionOpened      State = "session_opened"
	StateLockAcquired       State = "lock_acquired"
	StateTranslated         State = "translated"
	StateSubmitted          State = "submitted"
	StateConfirmed          State = "confirmed"
	StateDuplicateConfirmed State = "duplicate_confirmed"
	StateLogicalFailure     State = "logical_failure"
	StateReleased           State = "released"
	StateClosed             State = "closed"
	StateRecordFinalized    State = "record_finalized"
)

var ErrInvalidTransition = errors.New("invalid_transition")

// isTransitionAllowed encodes the happy path plus the early exits. Every exit
// after the session is opened still passes through Released (when locked) and
// Closed before the record is finalized.
func isTransitionAllowed(current, target State) bool {
	switch current {
	case StateStart:
		return target == StateRecordPersisted
	case StateRecordPersisted:
		return target == StateSessionOpened || target == StateRecordFinalized
	case StateSessionOpened:
		return target == StateLockAcquired || target == StateClosed
	case StateLockAcquired:
		return target == StateTranslated || target == StateReleased
	case StateTranslated:
		return target == StateSubmitted || target == StateReleased
	case StateSubmitted:
		return target == StateConfirmed ||
			target == StateDuplicateConfirmed ||
			target == StateLogicalFailure ||
			target == StateReleased
	case StateConfirmed, StateDuplicateConfirmed, StateLogicalFailure:
		return target == StateReleased
	case StateReleased:
		return target == StateClosed
	case StateClosed:
		return target == StateRecordFinalized
	default:
		return false
	}
}

type transitionObserver func(from, to State)

// machine tracks the states visited by one orchestration.
type machine struct {
	current     State
	transitions []State
	observe     transitionObserver
	invalid     error
}

func newMachine(observe transitionObserver) *machine {
	return &machine{
		current:     StateStart,
		transitions: []State{StateStart},
		observe:     observe,
	}
}

func (m *machine) advance(to State) {
	from := m.current
	if !isTransitionAllowed(from, to) {
		m.invalid = errors.Join(m.invalid, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to))
		return
	}
	m.current = to
	m.transitions = append(m.transitions, to)
	if m.observe != nil {
		m.observe(from, to)
	}
}

func (m *machine) visited(state State) bool {
	for _, s := range m.transitions {
		if s == state {
			return true
		}
	}
	return false
}

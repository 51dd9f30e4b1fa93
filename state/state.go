package state

import (
	"errors"
	"sync"
)

// Phase identifies one state of a room's lifecycle.
type Phase string

// ErrTransitionNotAllowed is returned when a phase transition is not in the
// machine's transition table.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// Machine is a small validated transition machine. Transitions must be
// registered with Allow before they can be taken; an optional condition is
// re-checked on every attempt.
type Machine struct {
	current     Phase
	transitions map[Phase]map[Phase]func() bool
	mutex       sync.RWMutex
}

func NewMachine(initial Phase) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Phase]map[Phase]func() bool),
	}
}

// Allow registers a legal transition. A nil condition means always allowed.
func (m *Machine) Allow(from, to Phase, condition func() bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Phase]func() bool)
	}
	m.transitions[from][to] = condition
}

func (m *Machine) Current() Phase {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Transition moves the machine to the given phase, or returns
// ErrTransitionNotAllowed and leaves the current phase untouched.
func (m *Machine) Transition(to Phase) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conditions, exists := m.transitions[m.current]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if condition != nil && !condition() {
		return ErrTransitionNotAllowed
	}

	m.current = to
	return nil
}

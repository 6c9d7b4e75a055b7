package connstate

import (
	"fmt"
	"slices"
	"sync"

	"github.com/freddiequinson/kountryeye-console/internal/bus"
)

// State represents the push connection state.
type State string

const (
	Connecting State = "CONNECTING"
	Open       State = "OPEN"
	Closed     State = "CLOSED"
)

// MaxAttempts is the reconnect attempt cap. Once reached the console
// keeps running on the polling baseline only.
const MaxAttempts = 5

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Connecting: {Open, Closed},
	Open:       {Closed},
	Closed:     {Connecting},
}

// Machine tracks the push connection state and the reconnect attempt
// counter. There is exactly one per signed-in session.
type Machine struct {
	mu      sync.RWMutex
	current State
	attempt int
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Closed with no attempts.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Closed,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Attempt returns the current reconnect attempt counter.
func (m *Machine) Attempt() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempt
}

// NextAttempt increments and returns the reconnect attempt counter.
func (m *Machine) NextAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt++
	return m.attempt
}

// ResetAttempts clears the attempt counter after a successful open.
func (m *Machine) ResetAttempts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt = 0
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	attempt := m.attempt
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind: bus.ConnStateChanged,
			Payload: StatusChange{
				From:    from,
				To:      to,
				Attempt: attempt,
			},
		})
	}
	return nil
}

// StatusChange is the payload for connection state change events.
type StatusChange struct {
	From    State
	To      State
	Attempt int
}

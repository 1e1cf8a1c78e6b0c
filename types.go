package evfsm

// StateID is a unique identifier for a state
type StateID string

// EventID is a unique identifier for an event type
type EventID string

// State is the tagged value a machine holds at any instant: the identifier
// of the active state plus an optional payload captured when the transition
// into it was taken. The payload is owned by the machine and must be treated
// as read-only by hooks.
type State struct {
	ID      StateID
	Payload any
}

// StateType classifies the behavior of a state
type StateType int

const (
	// StateNormal is a regular state that waits for events
	StateNormal StateType = iota
	// StateFinal is a terminal state - no transitions out
	StateFinal
)

// TimerScope defines when a timer is automatically cancelled
type TimerScope int

const (
	// TimerScopeGlobal - timer lives until explicitly stopped or the machine stops
	TimerScopeGlobal TimerScope = iota
	// TimerScopeState - timer auto-cancelled when exiting the state that started it
	TimerScopeState
)

// DefaultQueueCapacity is the pending-event queue capacity used when a
// machine is built without WithQueueCapacity.
const DefaultQueueCapacity = 16

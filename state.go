package evfsm

import "time"

// ProcessFunc decides what an event means in a given state. It runs with
// exclusive access to the machine's context data and returns Stay or
// MoveTo; it is the only place a transition can originate.
type ProcessFunc func(ctx *Context, evt *Event) Outcome

// HookFunc is an entry or exit action. A returned error is logged and
// counted but never aborts the transition in flight.
type HookFunc func(ctx *Context) error

// StateDef defines one state of the machine: its hooks and its declarative
// timeout. The running machine holds a State value (ID plus payload); the
// StateDef is the behavior registered for that ID.
type StateDef struct {
	ID   StateID
	Type StateType // Normal, Final

	OnEnter HookFunc
	OnExit  HookFunc

	// Process handles events while this state is active. States without an
	// explicit Process get one synthesized from the definition's declarative
	// transition rules at build time.
	Process ProcessFunc

	// Declarative timeout: auto-started on entry, auto-cancelled on exit
	Timeout      time.Duration
	TimeoutEvent EventID

	// Declared timers (for auto-cleanup on state exit)
	DeclaredTimers []string
}

// StateOption is a functional option for configuring a StateDef
type StateOption func(*StateDef)

// WithOnEnter sets the entry action for the state
func WithOnEnter(fn HookFunc) StateOption {
	return func(s *StateDef) {
		s.OnEnter = fn
	}
}

// WithOnExit sets the exit action for the state
func WithOnExit(fn HookFunc) StateOption {
	return func(s *StateDef) {
		s.OnExit = fn
	}
}

// WithProcess sets an explicit process hook for the state. A state with a
// process hook may not also be the source of declarative transitions; the
// definition rejects that at validation time.
func WithProcess(fn ProcessFunc) StateOption {
	return func(s *StateDef) {
		s.Process = fn
	}
}

// WithTimeout sets a declarative timeout that auto-starts on entry. When it
// fires, the event is dispatched through the normal concurrent path, so a
// timeout racing a busy machine is queued like any other producer's event.
func WithTimeout(duration time.Duration, event EventID) StateOption {
	return func(s *StateDef) {
		s.Timeout = duration
		s.TimeoutEvent = event
	}
}

// WithTimer declares a named timer for auto-cleanup on state exit
func WithTimer(name string) StateOption {
	return func(s *StateDef) {
		s.DeclaredTimers = append(s.DeclaredTimers, name)
	}
}

package evfsm

// Outcome is the result of a process hook. It tells the dispatcher whether
// the machine stays where it is or moves to another state.
type Outcome struct {
	move bool
	next State

	// during is the declarative transition action, if the outcome was
	// produced by a compiled rule. It runs after the exit hook and before
	// the state swap.
	during ActionFunc
}

// Stay keeps the machine in its current state. No exit or entry hooks run.
func Stay() Outcome {
	return Outcome{}
}

// MoveTo replaces the current state with the given one. The current state's
// exit hook runs, then the stored state is swapped, then the new state's
// entry hook runs. A MoveTo targeting the current state is a self-transition
// and still runs exit and entry.
func MoveTo(id StateID) Outcome {
	return Outcome{move: true, next: State{ID: id}}
}

// MoveToWith is MoveTo with a payload attached to the new state. The payload
// is captured at transition time and visible to hooks via Context.State.
func MoveToWith(id StateID, payload any) Outcome {
	return Outcome{move: true, next: State{ID: id, Payload: payload}}
}

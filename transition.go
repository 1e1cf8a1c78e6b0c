package evfsm

// GuardFunc gates a declarative transition. It must be side-effect free;
// a rule whose guard returns false is skipped and the next matching rule
// is tried.
type GuardFunc func(ctx *Context) bool

// ActionFunc runs while a declarative transition is being taken, after the
// source state's exit hook and before the target's entry hook. A returned
// error is logged and counted; the transition still completes.
type ActionFunc func(ctx *Context) error

// Transition is a declarative state change rule. Rules are not interpreted
// at dispatch time: Build compiles the rules of each source state into that
// state's process hook, preserving declaration order.
type Transition struct {
	From   StateID // Source state (or "*" for any-state)
	Event  EventID // Triggering event
	To     StateID // Target state
	Guard  GuardFunc  // Optional: must return true to take transition
	Action ActionFunc // Optional: runs during transition
}

// WildcardState matches any state in transition rules
const WildcardState StateID = "*"

// TransitionOption is a functional option for configuring a Transition
type TransitionOption func(*Transition)

// WithGuard sets a guard condition for the transition
func WithGuard(fn GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.Guard = fn
	}
}

// WithGuards sets multiple guard conditions that must ALL pass (AND logic)
func WithGuards(guards ...GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.Guard = func(ctx *Context) bool {
			for _, g := range guards {
				if !g(ctx) {
					return false
				}
			}
			return true
		}
	}
}

// WithAction sets an action to execute during the transition
func WithAction(fn ActionFunc) TransitionOption {
	return func(t *Transition) {
		t.Action = fn
	}
}

package evfsm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Definition holds the machine structure before building a Machine.
type Definition struct {
	states         map[StateID]*StateDef
	transitions    []Transition
	initial        StateID
	initialPayload any
	queueCapacity  int
}

// NewDefinition creates a new definition builder.
func NewDefinition() *Definition {
	return &Definition{
		states:      make(map[StateID]*StateDef),
		transitions: make([]Transition, 0),
	}
}

// State adds a normal state to the definition.
func (d *Definition) State(id StateID, opts ...StateOption) *Definition {
	s := &StateDef{
		ID:   id,
		Type: StateNormal,
	}
	for _, opt := range opts {
		opt(s)
	}
	d.states[id] = s
	return d
}

// FinalState adds a terminal state with no outgoing transitions.
func (d *Definition) FinalState(id StateID, opts ...StateOption) *Definition {
	s := &StateDef{
		ID:   id,
		Type: StateFinal,
	}
	for _, opt := range opts {
		opt(s)
	}
	d.states[id] = s
	return d
}

// Transition adds a transition rule. Rules for a state are matched in
// declaration order; the first rule whose event matches and whose guard
// passes wins.
func (d *Definition) Transition(from StateID, event EventID, to StateID, opts ...TransitionOption) *Definition {
	t := Transition{
		From:  from,
		Event: event,
		To:    to,
	}
	for _, opt := range opts {
		opt(&t)
	}
	d.transitions = append(d.transitions, t)
	return d
}

// AnyStateTransition adds a transition that can fire from any rule-driven
// state. State-specific rules are tried before wildcard rules; final states
// and states with a custom process hook never consult wildcards.
func (d *Definition) AnyStateTransition(event EventID, to StateID, opts ...TransitionOption) *Definition {
	return d.Transition(WildcardState, event, to, opts...)
}

// Initial sets the initial state.
func (d *Definition) Initial(id StateID) *Definition {
	d.initial = id
	return d
}

// InitialWith sets the initial state together with its payload.
func (d *Definition) InitialWith(id StateID, payload any) *Definition {
	d.initial = id
	d.initialPayload = payload
	return d
}

// QueueCapacity sets the event queue capacity for machines built from this
// definition. Values <= 0 select DefaultQueueCapacity.
func (d *Definition) QueueCapacity(n int) *Definition {
	d.queueCapacity = n
	return d
}

// Validate checks the definition for errors.
func (d *Definition) Validate() error {
	if d.initial == "" {
		return fmt.Errorf("no initial state defined")
	}
	if _, ok := d.states[d.initial]; !ok {
		return fmt.Errorf("initial state %q not defined", d.initial)
	}

	for _, t := range d.transitions {
		if t.From != WildcardState {
			src, ok := d.states[t.From]
			if !ok {
				return fmt.Errorf("transition from undefined state %q", t.From)
			}
			if src.Process != nil {
				return fmt.Errorf("state %q has a process hook and cannot be a transition source", t.From)
			}
			if src.Type == StateFinal {
				return fmt.Errorf("final state %q cannot have outgoing transitions", t.From)
			}
		}
		if _, ok := d.states[t.To]; !ok {
			return fmt.Errorf("transition to undefined state %q", t.To)
		}
	}

	for id, s := range d.states {
		if s.Type == StateFinal && s.Process != nil {
			return fmt.Errorf("final state %q cannot have a process hook", id)
		}
		if (s.Timeout > 0) != (s.TimeoutEvent != "") {
			return fmt.Errorf("state %q must set timeout duration and event together", id)
		}
	}

	return nil
}

// Build creates a Machine from the definition. Declarative transitions are
// compiled into process hooks for their source states, so machines built
// from rules and machines built from hand-written hooks dispatch the same
// way.
func (d *Definition) Build(opts ...MachineOption) (*Machine, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	m := &Machine{
		def:           d,
		procs:         d.compileProcessHooks(),
		queueCapacity: d.queueCapacity,
		timers:        make(map[string]*timerEntry),
		logger:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.id == "" {
		m.id = uuid.NewString()
	}
	m.queue = newEventQueue(m.queueCapacity, m.cs)

	return m, nil
}

// compileProcessHooks resolves the process hook for every state. A custom
// hook wins outright; otherwise the state's rules plus any wildcard rules
// are compiled into a synthesized hook. Final states never get one.
func (d *Definition) compileProcessHooks() map[StateID]ProcessFunc {
	var wildcards []Transition
	rulesBySource := make(map[StateID][]Transition)
	for _, t := range d.transitions {
		if t.From == WildcardState {
			wildcards = append(wildcards, t)
			continue
		}
		rulesBySource[t.From] = append(rulesBySource[t.From], t)
	}

	procs := make(map[StateID]ProcessFunc, len(d.states))
	for id, s := range d.states {
		if s.Process != nil {
			procs[id] = s.Process
			continue
		}
		if s.Type == StateFinal {
			continue
		}
		rules := append(append([]Transition(nil), rulesBySource[id]...), wildcards...)
		if len(rules) == 0 {
			continue
		}
		procs[id] = compileRules(rules)
	}
	return procs
}

func compileRules(rules []Transition) ProcessFunc {
	return func(ctx *Context, evt *Event) Outcome {
		for _, r := range rules {
			if r.Event != evt.ID {
				continue
			}
			if r.Guard != nil && !r.Guard(ctx) {
				continue
			}
			return Outcome{move: true, next: State{ID: r.To}, during: r.Action}
		}
		return Stay()
	}
}

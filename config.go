package evfsm

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// StateConfig defines one state in a YAML machine configuration. Hooks are
// referenced by the names they were registered under in the HookSet.
type StateConfig struct {
	Entry        string   `yaml:"entry,omitempty"`
	Exit         string   `yaml:"exit,omitempty"`
	Process      string   `yaml:"process,omitempty"`
	Timeout      Duration `yaml:"timeout,omitempty"`
	TimeoutEvent string   `yaml:"timeoutEvent,omitempty"`
	Timers       []string `yaml:"timers,omitempty"`
	Final        bool     `yaml:"final,omitempty"`
}

// TransitionConfig defines one transition rule. From may be "*" for a
// wildcard rule.
type TransitionConfig struct {
	From   string `yaml:"from"`
	Event  string `yaml:"event"`
	To     string `yaml:"to"`
	Guard  string `yaml:"guard,omitempty"`
	Action string `yaml:"action,omitempty"`
}

// MachineConfig is the YAML configuration of a complete machine.
type MachineConfig struct {
	ID            string                  `yaml:"id,omitempty"`
	Initial       string                  `yaml:"initial"`
	QueueCapacity int                     `yaml:"queueCapacity,omitempty"`
	States        map[string]*StateConfig `yaml:"states"`
	Transitions   []TransitionConfig      `yaml:"transitions,omitempty"`
}

// Validate checks the configuration shape. Hook name resolution and the
// deeper structural rules run in ToDefinition.
func (c *MachineConfig) Validate() error {
	if c.Initial == "" {
		return errors.New("initial state ID is required")
	}
	if len(c.States) == 0 {
		return errors.New("states map is required and cannot be empty")
	}
	if _, ok := c.States[c.Initial]; !ok {
		return fmt.Errorf("initial state %q not found in states", c.Initial)
	}
	for id, sc := range c.States {
		if (time.Duration(sc.Timeout) > 0) != (sc.TimeoutEvent != "") {
			return fmt.Errorf("state %q: timeout and timeoutEvent must be set together", id)
		}
	}
	for i, tc := range c.Transitions {
		if tc.From == "" || tc.Event == "" || tc.To == "" {
			return fmt.Errorf("transition %d: from, event and to are required", i)
		}
	}
	return nil
}

// HookSet maps the hook names used in configuration files to Go functions.
// Registration is chainable.
type HookSet struct {
	entries   map[string]HookFunc
	exits     map[string]HookFunc
	processes map[string]ProcessFunc
	guards    map[string]GuardFunc
	actions   map[string]ActionFunc
}

// NewHookSet creates an empty hook registry.
func NewHookSet() *HookSet {
	return &HookSet{
		entries:   make(map[string]HookFunc),
		exits:     make(map[string]HookFunc),
		processes: make(map[string]ProcessFunc),
		guards:    make(map[string]GuardFunc),
		actions:   make(map[string]ActionFunc),
	}
}

// RegisterEntry registers an entry hook under a name.
func (h *HookSet) RegisterEntry(name string, fn HookFunc) *HookSet {
	h.entries[name] = fn
	return h
}

// RegisterExit registers an exit hook under a name.
func (h *HookSet) RegisterExit(name string, fn HookFunc) *HookSet {
	h.exits[name] = fn
	return h
}

// RegisterProcess registers a process hook under a name.
func (h *HookSet) RegisterProcess(name string, fn ProcessFunc) *HookSet {
	h.processes[name] = fn
	return h
}

// RegisterGuard registers a guard under a name.
func (h *HookSet) RegisterGuard(name string, fn GuardFunc) *HookSet {
	h.guards[name] = fn
	return h
}

// RegisterAction registers a transition action under a name.
func (h *HookSet) RegisterAction(name string, fn ActionFunc) *HookSet {
	h.actions[name] = fn
	return h
}

// FromYAML parses a machine configuration and resolves its hook names
// against the given HookSet. A Definition carries no machine identifier;
// to honor the config's id, build through MachineConfig.Build or pass
// WithID yourself.
func FromYAML(data []byte, hooks *HookSet) (*Definition, error) {
	var cfg MachineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse machine config: %w", err)
	}
	return cfg.ToDefinition(hooks)
}

// LoadFile reads a YAML machine configuration from disk.
func LoadFile(path string, hooks *HookSet) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine config: %w", err)
	}
	return FromYAML(data, hooks)
}

// ToDefinition converts the configuration into a Definition, resolving hook
// names. Every name referenced by the config must be registered.
func (c *MachineConfig) ToDefinition(hooks *HookSet) (*Definition, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = NewHookSet()
	}

	def := NewDefinition()

	for id, sc := range c.States {
		var opts []StateOption
		if sc.Entry != "" {
			fn, ok := hooks.entries[sc.Entry]
			if !ok {
				return nil, fmt.Errorf("state %q: entry hook %q not registered", id, sc.Entry)
			}
			opts = append(opts, WithOnEnter(fn))
		}
		if sc.Exit != "" {
			fn, ok := hooks.exits[sc.Exit]
			if !ok {
				return nil, fmt.Errorf("state %q: exit hook %q not registered", id, sc.Exit)
			}
			opts = append(opts, WithOnExit(fn))
		}
		if sc.Process != "" {
			fn, ok := hooks.processes[sc.Process]
			if !ok {
				return nil, fmt.Errorf("state %q: process hook %q not registered", id, sc.Process)
			}
			opts = append(opts, WithProcess(fn))
		}
		if sc.Timeout > 0 {
			opts = append(opts, WithTimeout(time.Duration(sc.Timeout), EventID(sc.TimeoutEvent)))
		}
		for _, name := range sc.Timers {
			opts = append(opts, WithTimer(name))
		}

		if sc.Final {
			def.FinalState(StateID(id), opts...)
		} else {
			def.State(StateID(id), opts...)
		}
	}

	for _, tc := range c.Transitions {
		var topts []TransitionOption
		if tc.Guard != "" {
			fn, ok := hooks.guards[tc.Guard]
			if !ok {
				return nil, fmt.Errorf("transition %s->%s: guard %q not registered", tc.From, tc.To, tc.Guard)
			}
			topts = append(topts, WithGuard(fn))
		}
		if tc.Action != "" {
			fn, ok := hooks.actions[tc.Action]
			if !ok {
				return nil, fmt.Errorf("transition %s->%s: action %q not registered", tc.From, tc.To, tc.Action)
			}
			topts = append(topts, WithAction(fn))
		}
		def.Transition(StateID(tc.From), EventID(tc.Event), StateID(tc.To), topts...)
	}

	def.Initial(StateID(c.Initial))
	if c.QueueCapacity > 0 {
		def.QueueCapacity(c.QueueCapacity)
	}

	return def, nil
}

// Build constructs a machine straight from the configuration. The config's
// id and queue capacity apply; extra options may override them.
func (c *MachineConfig) Build(hooks *HookSet, opts ...MachineOption) (*Machine, error) {
	def, err := c.ToDefinition(hooks)
	if err != nil {
		return nil, err
	}
	if c.ID != "" {
		opts = append([]MachineOption{WithID(c.ID)}, opts...)
	}
	return def.Build(opts...)
}

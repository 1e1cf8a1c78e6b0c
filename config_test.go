package evfsm

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const gateYAML = `
id: gate
initial: closed
queueCapacity: 8
states:
  closed:
    entry: onClosed
  open:
    timeout: "50ms"
    timeoutEvent: auto_close
  faulted:
    final: true
transitions:
  - {from: closed, event: open, to: open, guard: allowOpen, action: recordOpen}
  - {from: open, event: auto_close, to: closed}
  - {from: "*", event: fault, to: faulted}
`

func TestFromYAML(t *testing.T) {
	var closedEntries, opens atomic.Int32
	var allowed atomic.Bool

	hooks := NewHookSet().
		RegisterEntry("onClosed", func(c *Context) error {
			closedEntries.Add(1)
			return nil
		}).
		RegisterGuard("allowOpen", func(c *Context) bool {
			return allowed.Load()
		}).
		RegisterAction("recordOpen", func(c *Context) error {
			opens.Add(1)
			return nil
		})

	def, err := FromYAML([]byte(gateYAML), hooks)
	require.NoError(t, err)

	m, err := def.Build(WithID("gate"))
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	require.Equal(t, "gate", m.ID())

	m.Init()
	require.Equal(t, StateID("closed"), m.Current().ID)
	require.Equal(t, int32(1), closedEntries.Load())
	require.Equal(t, 8, m.Stats().QueueCapacity)

	// Guard rejects
	m.Dispatch(Event{ID: "open"})
	require.Equal(t, StateID("closed"), m.Current().ID)
	require.Zero(t, opens.Load())

	// Guard passes, action runs, timeout closes the gate again
	allowed.Store(true)
	m.Dispatch(Event{ID: "open"})
	require.Equal(t, StateID("open"), m.Current().ID)
	require.Equal(t, int32(1), opens.Load())

	require.Eventually(t, func() bool {
		return closedEntries.Load() == 2
	}, time.Second, 5*time.Millisecond)

	// Wildcard rule reaches the final state from anywhere
	m.Dispatch(Event{ID: "fault"})
	require.Eventually(t, func() bool {
		return m.InState("faulted")
	}, time.Second, 5*time.Millisecond)
}

func TestMachineConfigBuild(t *testing.T) {
	hooks := NewHookSet().
		RegisterEntry("onClosed", func(c *Context) error { return nil }).
		RegisterGuard("allowOpen", func(c *Context) bool { return true }).
		RegisterAction("recordOpen", func(c *Context) error { return nil })

	cfg := MachineConfig{
		ID:      "conveyor",
		Initial: "closed",
		States: map[string]*StateConfig{
			"closed": {Entry: "onClosed"},
			"open":   {},
		},
		Transitions: []TransitionConfig{
			{From: "closed", Event: "open", To: "open", Guard: "allowOpen", Action: "recordOpen"},
		},
	}

	m, err := cfg.Build(hooks)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	require.Equal(t, "conveyor", m.ID())

	m.Init()
	m.Dispatch(Event{ID: "open"})
	require.Equal(t, StateID("open"), m.Current().ID)
}

func TestFromYAMLUnknownHook(t *testing.T) {
	yml := `
initial: a
states:
  a:
    entry: missing
`
	_, err := FromYAML([]byte(yml), NewHookSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestFromYAMLBadDuration(t *testing.T) {
	yml := `
initial: a
states:
  a:
    timeout: "fast"
    timeoutEvent: tick
`
	_, err := FromYAML([]byte(yml), NewHookSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid duration")
}

func TestMachineConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  MachineConfig
	}{
		{
			name: "missing initial",
			cfg: MachineConfig{
				States: map[string]*StateConfig{"a": {}},
			},
		},
		{
			name: "initial not defined",
			cfg: MachineConfig{
				Initial: "b",
				States:  map[string]*StateConfig{"a": {}},
			},
		},
		{
			name: "no states",
			cfg: MachineConfig{
				Initial: "a",
			},
		},
		{
			name: "timeout without event",
			cfg: MachineConfig{
				Initial: "a",
				States:  map[string]*StateConfig{"a": {Timeout: Duration(time.Second)}},
			},
		},
		{
			name: "incomplete transition",
			cfg: MachineConfig{
				Initial: "a",
				States:  map[string]*StateConfig{"a": {}},
				Transitions: []TransitionConfig{
					{From: "a", Event: "", To: "a"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	hooks := NewHookSet().
		RegisterEntry("onClosed", func(c *Context) error { return nil }).
		RegisterGuard("allowOpen", func(c *Context) bool { return true }).
		RegisterAction("recordOpen", func(c *Context) error { return nil })

	path := filepath.Join(t.TempDir(), "gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gateYAML), 0o644))

	def, err := LoadFile(path, hooks)
	require.NoError(t, err)

	m, err := def.Build()
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	m.Init()
	require.Equal(t, StateID("closed"), m.Current().ID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), hooks)
	require.Error(t, err)
}

//go:build fsmdebug

package evfsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverflowPanicsInDebug(t *testing.T) {
	def := NewDefinition().
		State(stateA,
			WithProcess(func(c *Context, e *Event) Outcome {
				if e.ID == evGo {
					for i := 0; i <= DefaultQueueCapacity; i++ {
						c.Dispatch(Event{ID: evNext})
					}
				}
				return Stay()
			}),
		).
		Initial(stateA)

	m, err := def.Build()
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	m.Init()
	require.Panics(t, func() {
		m.Dispatch(Event{ID: evGo})
	})
	require.Equal(t, uint64(1), m.DroppedEvents(), "the drop is counted before the panic")
}

func TestUnreachablePanicsInDebug(t *testing.T) {
	def := NewDefinition().
		State(stateA,
			WithProcess(func(c *Context, e *Event) Outcome {
				return MoveTo("nowhere")
			}),
		).
		Initial(stateA)

	m, err := def.Build()
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	m.Init()
	require.Panics(t, func() {
		m.Dispatch(Event{ID: evGo})
	})
}

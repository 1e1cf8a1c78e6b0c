package evfsm

import (
	"time"

	"github.com/rs/zerolog"
)

// Context is passed to all hooks and provides access to machine operations.
type Context struct {
	Machine *Machine
	Event   *Event // Event being processed (nil during forced or initial entry)
	From    State  // State being transitioned from (zero outside transitions)
	To      State  // State being transitioned to (zero outside transitions)
	State   State  // Current state when the hook was invoked
	Data    any    // User-provided application data
	Logger  zerolog.Logger
}

// Current returns the current active state.
func (c *Context) Current() State {
	return c.Machine.Current()
}

// InState checks if the given state is the current state.
func (c *Context) InState(id StateID) bool {
	return c.Machine.InState(id)
}

// StartTimer starts a named timer that dispatches an event when it fires.
// The timer is scoped to the current state and cancelled on exit. If a timer
// with the same name exists, it is replaced.
func (c *Context) StartTimer(name string, duration time.Duration, event Event) {
	c.Machine.startTimer(name, duration, event, TimerScopeState, c.Machine.Current().ID)
}

// StartTimerGlobal starts a timer that won't be auto-cancelled on state exit.
func (c *Context) StartTimerGlobal(name string, duration time.Duration, event Event) {
	c.Machine.startTimer(name, duration, event, TimerScopeGlobal, "")
}

// StopTimer stops a timer by name. No-op if the timer doesn't exist.
func (c *Context) StopTimer(name string) {
	c.Machine.StopTimer(name)
}

// ResetTimer stops and restarts a timer with a new duration.
func (c *Context) ResetTimer(name string, duration time.Duration) {
	c.Machine.resetTimer(name, duration)
}

// TimerActive checks if a timer is currently running.
func (c *Context) TimerActive(name string) bool {
	return c.Machine.TimerActive(name)
}

// Dispatch delivers an event from within a hook. The dispatch in flight
// holds the machine, so the event is queued and processed after the current
// pipeline step, before the outer Dispatch returns.
func (c *Context) Dispatch(event Event) {
	c.Machine.Dispatch(event)
}

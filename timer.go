package evfsm

import (
	"fmt"
	"time"
)

// timerEntry tracks a running timer
type timerEntry struct {
	timer      *time.Timer
	event      Event
	scope      TimerScope
	ownerState StateID
	duration   time.Duration
}

// timeoutTimerName is the reserved name of a state's declarative timeout
// timer.
func timeoutTimerName(id StateID) string {
	return fmt.Sprintf("_timeout_%s", id)
}

// startTimer starts a named timer with scope tracking, replacing any running
// timer with the same name. When it fires, the event goes through Dispatch
// like any other producer.
func (m *Machine) startTimer(name string, duration time.Duration, event Event, scope TimerScope, owner StateID) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	// Cancel existing timer with same name
	if existing, ok := m.timers[name]; ok {
		existing.timer.Stop()
		delete(m.timers, name)
	}

	t := time.AfterFunc(duration, func() {
		m.timerMu.Lock()
		// Check timer still exists (wasn't cancelled)
		_, ok := m.timers[name]
		if ok {
			delete(m.timers, name)
		}
		m.timerMu.Unlock()
		if !ok {
			return
		}

		m.logger.Debug().
			Str("machine", m.id).
			Str("timer", name).
			Str("event", string(event.ID)).
			Msg("timer fired")
		m.Dispatch(event)
	})

	m.timers[name] = &timerEntry{
		timer:      t,
		event:      event,
		scope:      scope,
		ownerState: owner,
		duration:   duration,
	}

	m.logger.Debug().
		Str("machine", m.id).
		Str("timer", name).
		Dur("duration", duration).
		Str("event", string(event.ID)).
		Msg("timer started")
}

// StartTimer starts a named global timer. It survives state changes; use
// WithTimer to declare a timer a state should cancel on exit.
func (m *Machine) StartTimer(name string, duration time.Duration, event Event) {
	m.startTimer(name, duration, event, TimerScopeGlobal, "")
}

// StopTimer stops a timer by name.
func (m *Machine) StopTimer(name string) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if entry, ok := m.timers[name]; ok {
		entry.timer.Stop()
		delete(m.timers, name)
		m.logger.Debug().Str("machine", m.id).Str("timer", name).Msg("timer stopped")
	}
}

// StopAllTimers stops all running timers.
func (m *Machine) StopAllTimers() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	for name, entry := range m.timers {
		entry.timer.Stop()
		m.logger.Debug().Str("machine", m.id).Str("timer", name).Msg("timer stopped (cleanup)")
	}
	m.timers = make(map[string]*timerEntry)
}

// TimerActive checks if a timer is running.
func (m *Machine) TimerActive(name string) bool {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	_, ok := m.timers[name]
	return ok
}

// resetTimer restarts a timer with a new duration, preserving its event and
// scope.
func (m *Machine) resetTimer(name string, duration time.Duration) {
	m.timerMu.Lock()
	entry, ok := m.timers[name]
	if !ok {
		m.timerMu.Unlock()
		return
	}
	event := entry.event
	scope := entry.scope
	owner := entry.ownerState
	entry.timer.Stop()
	delete(m.timers, name)
	m.timerMu.Unlock()

	m.startTimer(name, duration, event, scope, owner)
}

// stopTimersForState cancels all state-scoped timers owned by the given
// state.
func (m *Machine) stopTimersForState(stateID StateID) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	for name, entry := range m.timers {
		if entry.scope == TimerScopeState && entry.ownerState == stateID {
			entry.timer.Stop()
			delete(m.timers, name)
			m.logger.Debug().
				Str("machine", m.id).
				Str("timer", name).
				Str("state", string(stateID)).
				Msg("timer stopped (state exit)")
		}
	}
}

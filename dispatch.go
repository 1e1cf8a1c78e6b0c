package evfsm

// Dispatch delivers an event to the machine. If no dispatch is in flight the
// calling goroutine runs the pipeline itself and then drains the queue; when
// another goroutine holds the dispatch, the event is queued and will be
// processed before that dispatch returns. A full queue drops the event and
// increments the dropped counter. Dispatch never blocks on hook execution of
// other events and never reports failure to the caller.
//
// A panicking hook propagates to the Dispatch caller. The machine stays
// dispatchable, but the interrupted transition is not rolled back.
func (m *Machine) Dispatch(evt Event) {
	if !m.initialized.Load() {
		m.logger.Error().
			Str("machine", m.id).
			Str("event", string(evt.ID)).
			Msg("dispatch before init, event ignored")
		return
	}

	if m.tryAcquire() {
		m.dispatchLocked(&evt)
	} else if !m.queue.enqueue(evt) {
		m.dropped.Add(1)
		m.faultOverflow(evt)
	}

	m.sweepQueue()
}

// tryAcquire attempts to take dispatch ownership.
func (m *Machine) tryAcquire() bool {
	return m.guard.CompareAndSwap(false, true)
}

func (m *Machine) release() {
	m.guard.Store(false)
}

// dispatchLocked runs the pipeline for evt, then drains the queue. The
// caller must hold the guard; it is released on all paths, including hook
// panics.
func (m *Machine) dispatchLocked(evt *Event) {
	defer m.release()
	if evt != nil {
		m.runPipeline(evt)
	}
	m.drainQueue()
}

// drainQueue processes queued events until the queue is observed empty.
// Events enqueued by hooks during the drain are picked up in the same pass.
func (m *Machine) drainQueue() {
	for {
		evt, ok := m.queue.dequeue()
		if !ok {
			return
		}
		m.runPipeline(&evt)
	}
}

// sweepQueue closes the race between a holder's final empty check and its
// release: an event enqueued in that window would otherwise sit in the queue
// until the next dispatch. Every Dispatch ends with a sweep, so the enqueuer
// itself reprocesses anything left behind.
func (m *Machine) sweepQueue() {
	for m.queue.len() > 0 && m.tryAcquire() {
		m.dispatchLocked(nil)
	}
}

// runPipeline executes one event against the current state: process hook,
// then on a move the exit hook, transition action, state swap, and entry
// hook. The caller holds the guard.
func (m *Machine) runPipeline(evt *Event) {
	m.dispatched.Add(1)

	cur := m.Current()
	if _, ok := m.def.states[cur.ID]; !ok {
		m.faultUnreachable(cur.ID)
		return
	}

	proc := m.procs[cur.ID]
	if proc == nil {
		m.logger.Debug().
			Str("machine", m.id).
			Str("event", string(evt.ID)).
			Str("state", string(cur.ID)).
			Msg("no process hook, staying")
		return
	}

	out := proc(m.makeContext(evt), evt)
	if !out.move {
		return
	}
	m.transition(cur, out, evt)
}

// transition performs the exit/entry sequence for a move outcome. A move to
// the current state is a self-transition and still runs both hooks.
func (m *Machine) transition(from State, out Outcome, evt *Event) {
	to := out.next
	if _, ok := m.def.states[to.ID]; !ok {
		m.faultUnreachable(to.ID)
		return
	}

	m.logger.Debug().
		Str("machine", m.id).
		Str("from", string(from.ID)).
		Str("to", string(to.ID)).
		Msg("transitioning")

	m.exitState(from, evt, to)

	if out.during != nil {
		ctx := m.makeContext(evt)
		ctx.From = from
		ctx.To = to
		if err := out.during(ctx); err != nil {
			m.noteHookError("action", to.ID, err)
		}
	}

	m.enterState(to, evt, from)
	m.transitionCount.Add(1)

	if m.onStateChange != nil {
		m.onStateChange(from, to)
	}
}

// enterState swaps the state, arms the declarative timeout timer, and runs
// the entry hook.
func (m *Machine) enterState(to State, evt *Event, from State) {
	sd := m.def.states[to.ID]
	m.setState(to)

	if sd.Timeout > 0 && sd.TimeoutEvent != "" {
		m.startTimer(timeoutTimerName(to.ID), sd.Timeout, Event{ID: sd.TimeoutEvent}, TimerScopeState, to.ID)
	}

	if sd.OnEnter != nil {
		ctx := m.makeContext(evt)
		ctx.From = from
		ctx.To = to
		if err := sd.OnEnter(ctx); err != nil {
			m.noteHookError("entry", to.ID, err)
		}
	}
}

// exitState cancels the state's timers and runs the exit hook.
func (m *Machine) exitState(from State, evt *Event, to State) {
	sd := m.def.states[from.ID]
	if sd == nil {
		return
	}

	m.stopTimersForState(from.ID)
	for _, name := range sd.DeclaredTimers {
		m.StopTimer(name)
	}
	m.StopTimer(timeoutTimerName(from.ID))

	if sd.OnExit != nil {
		ctx := m.makeContext(evt)
		ctx.From = from
		ctx.To = to
		if err := sd.OnExit(ctx); err != nil {
			m.noteHookError("exit", from.ID, err)
		}
	}
}

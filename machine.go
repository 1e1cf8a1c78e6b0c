package evfsm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Machine is a runtime state machine instance. Dispatch may be called from
// any goroutine; at most one goroutine runs hooks at a time, and events
// arriving while a dispatch is in flight are queued and drained before the
// running dispatch returns.
type Machine struct {
	id    string
	def   *Definition
	procs map[StateID]ProcessFunc

	mu    sync.RWMutex
	state State

	// guard is the dispatch ownership flag. The holder is the only
	// goroutine running the pipeline; everyone else enqueues.
	guard atomic.Bool
	queue *eventQueue

	queueCapacity int
	cs            CriticalSection

	initialized atomic.Bool

	dispatched      atomic.Uint64
	transitionCount atomic.Uint64
	dropped         atomic.Uint64
	hookErrors      atomic.Uint64

	data          any
	logger        zerolog.Logger
	onStateChange func(from, to State)

	timers  map[string]*timerEntry
	timerMu sync.Mutex
}

// MachineOption is a functional option for configuring a Machine.
type MachineOption func(*Machine)

// WithID sets the machine identifier used in logs and metrics. Machines
// built without one get a random UUID.
func WithID(id string) MachineOption {
	return func(m *Machine) {
		m.id = id
	}
}

// WithQueueCapacity overrides the event queue capacity from the definition.
func WithQueueCapacity(n int) MachineOption {
	return func(m *Machine) {
		m.queueCapacity = n
	}
}

// WithCriticalSection sets the lock protecting the event queue. The default
// is a mutex; tests substitute instrumented sections to shape interleavings.
func WithCriticalSection(cs CriticalSection) MachineOption {
	return func(m *Machine) {
		m.cs = cs
	}
}

// WithLogger sets the logger for the machine.
func WithLogger(logger zerolog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithData sets the application data accessible via Context.
func WithData(data any) MachineOption {
	return func(m *Machine) {
		m.data = data
	}
}

// WithStateChangeCallback sets a callback invoked after each state change.
// The callback runs on the dispatching goroutine with the guard held, so it
// must not block and must not call Dispatch synchronously in a way that
// expects immediate processing.
func WithStateChangeCallback(fn func(from, to State)) MachineOption {
	return func(m *Machine) {
		m.onStateChange = fn
	}
}

// OnStateChange sets a callback invoked after each state change.
// Can be called after Build() but before Init().
func (m *Machine) OnStateChange(fn func(from, to State)) {
	m.onStateChange = fn
}

// ID returns the machine identifier.
func (m *Machine) ID() string {
	return m.id
}

// Init enters the initial state, running its entry hook exactly once no
// matter how many goroutines call Init. Calls after the first are no-ops.
func (m *Machine) Init() {
	if m.initialized.Load() {
		return
	}
	if !m.tryAcquire() {
		// Another goroutine is initializing right now.
		return
	}
	m.initLocked()
	m.sweepQueue()
}

func (m *Machine) initLocked() {
	defer m.release()

	if !m.initialized.CompareAndSwap(false, true) {
		return
	}

	to := State{ID: m.def.initial, Payload: m.def.initialPayload}
	m.logger.Debug().Str("machine", m.id).Str("state", string(to.ID)).Msg("entering initial state")
	m.enterState(to, nil, State{})
	m.drainQueue()
}

// Stop cancels all running timers. The machine keeps its state and can
// still dispatch afterwards; Stop exists to release timer goroutines when
// the machine is retired.
func (m *Machine) Stop() {
	m.StopAllTimers()
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// InState reports whether the machine is currently in the given state.
func (m *Machine) InState(id StateID) bool {
	return m.Current().ID == id
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// SetState forces a direct state change, bypassing event dispatch. It runs
// the full exit/entry sequence and the state change callback. It fails when
// the target state is unknown, the machine is not initialized, or a
// dispatch is in flight.
func (m *Machine) SetState(id StateID) error {
	if err := m.forceState(id); err != nil {
		return err
	}
	m.sweepQueue()
	return nil
}

func (m *Machine) forceState(id StateID) error {
	if _, ok := m.def.states[id]; !ok {
		return fmt.Errorf("unknown state %q", id)
	}
	if !m.initialized.Load() {
		return fmt.Errorf("machine %s not initialized", m.id)
	}
	if !m.tryAcquire() {
		return fmt.Errorf("dispatch in progress")
	}
	defer m.release()

	from := m.Current()
	if from.ID != id {
		m.transition(from, Outcome{move: true, next: State{ID: id}}, nil)
	}
	m.drainQueue()
	return nil
}

// DroppedEvents returns the number of events dropped because the queue was
// full.
func (m *Machine) DroppedEvents() uint64 {
	return m.dropped.Load()
}

// ResetDroppedEvents clears the dropped event counter.
func (m *Machine) ResetDroppedEvents() {
	m.dropped.Store(0)
}

// Stats is a point-in-time snapshot of the machine's counters.
type Stats struct {
	Dispatched    uint64
	Transitions   uint64
	Dropped       uint64
	HookErrors    uint64
	QueueLen      int
	QueueCapacity int
}

// Stats returns a snapshot of the machine's counters and queue occupancy.
func (m *Machine) Stats() Stats {
	return Stats{
		Dispatched:    m.dispatched.Load(),
		Transitions:   m.transitionCount.Load(),
		Dropped:       m.dropped.Load(),
		HookErrors:    m.hookErrors.Load(),
		QueueLen:      m.queue.len(),
		QueueCapacity: m.queue.capacity(),
	}
}

func (m *Machine) noteHookError(hook string, state StateID, err error) {
	m.hookErrors.Add(1)
	m.logger.Error().
		Err(err).
		Str("machine", m.id).
		Str("state", string(state)).
		Str("hook", hook).
		Msg("hook failed")
}

// makeContext creates a context for hooks. State is the machine's current
// state at creation time.
func (m *Machine) makeContext(event *Event) *Context {
	return &Context{
		Machine: m,
		Event:   event,
		State:   m.Current(),
		Data:    m.data,
		Logger:  m.logger,
	}
}

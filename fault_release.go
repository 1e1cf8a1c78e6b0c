//go:build !fsmdebug

package evfsm

// faultOverflow runs after an event was dropped because the queue was full.
// Release builds count and log at debug level; building with -tags fsmdebug
// turns overflow into a panic.
func (m *Machine) faultOverflow(evt Event) {
	m.logger.Debug().
		Str("machine", m.id).
		Str("event", string(evt.ID)).
		Int("capacity", m.queue.capacity()).
		Msg("queue full, event dropped")
}

// faultUnreachable runs when dispatch lands on a state the definition does
// not know. The machine stays where it is.
func (m *Machine) faultUnreachable(id StateID) {
	m.logger.Error().
		Str("machine", m.id).
		Str("state", string(id)).
		Msg("unknown state, staying")
}

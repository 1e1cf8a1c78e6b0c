//go:build fsmdebug

package evfsm

import "fmt"

func (m *Machine) faultOverflow(evt Event) {
	panic(fmt.Sprintf("evfsm: machine %s dropped event %q, queue full (capacity %d)", m.id, evt.ID, m.queue.capacity()))
}

func (m *Machine) faultUnreachable(id StateID) {
	panic(fmt.Sprintf("evfsm: machine %s reached unknown state %q", m.id, id))
}

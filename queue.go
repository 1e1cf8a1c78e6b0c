package evfsm

import "sync"

// CriticalSection is the mutual-exclusion primitive guarding the pending
// queue. Both operations must be cheap, bounded and non-reentrant; they are
// entered from every Dispatch caller, including timer goroutines. The
// default is a plain mutex; callers with their own locking discipline
// inject a replacement via WithCriticalSection.
type CriticalSection interface {
	Enter()
	Exit()
}

// mutexSection adapts sync.Mutex to CriticalSection.
type mutexSection struct {
	mu sync.Mutex
}

func (s *mutexSection) Enter() { s.mu.Lock() }
func (s *mutexSection) Exit()  { s.mu.Unlock() }

// eventQueue is a fixed-capacity FIFO ring for pending events. The buffer is
// allocated once at construction; enqueue and dequeue never allocate and do
// a constant amount of work inside the critical section. FIFO order is the
// order in which the critical section admits producers, not caller identity.
type eventQueue struct {
	cs    CriticalSection
	buf   []Event
	head  int
	count int
}

func newEventQueue(capacity int, cs CriticalSection) *eventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if cs == nil {
		cs = &mutexSection{}
	}
	return &eventQueue{
		cs:  cs,
		buf: make([]Event, capacity),
	}
}

// enqueue appends a copy of evt. It reports false when the ring is full;
// it never blocks and never grows the buffer.
func (q *eventQueue) enqueue(evt Event) bool {
	q.cs.Enter()
	defer q.cs.Exit()

	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = evt
	q.count++
	return true
}

// dequeue pops the oldest pending event. The second result is false when
// the ring is empty.
func (q *eventQueue) dequeue() (Event, bool) {
	q.cs.Enter()
	defer q.cs.Exit()

	if q.count == 0 {
		return Event{}, false
	}
	evt := q.buf[q.head]
	q.buf[q.head] = Event{} // release payload reference
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return evt, true
}

// len reports the number of pending events.
func (q *eventQueue) len() int {
	q.cs.Enter()
	defer q.cs.Exit()
	return q.count
}

// capacity reports the fixed ring size.
func (q *eventQueue) capacity() int {
	return len(q.buf)
}

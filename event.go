package evfsm

// Event carries data through the state machine. Events are plain values:
// Dispatch keeps its own copy when it has to queue one, so the caller may
// reuse or discard the event immediately after Dispatch returns. A pointer
// payload is shared between that copy and the caller and must be safe to
// read after Dispatch.
type Event struct {
	ID      EventID
	Payload any // Optional typed payload
}

package streamchat

// MapperState is the position of a Mapper in the message lifecycle.
type MapperState int

const (
	MapperIdle       MapperState = iota // Before Open.
	MapperStarted                       // EventStart emitted, accepting content.
	MapperTerminated                    // EventEnd or EventError emitted. Absorbing.
)

// unknownError replaces an empty error text from the backend.
const unknownError = "Unknown error"

// Step is the lifecycle transition function. It folds one wire event into
// state and returns the new state with the lifecycle event to emit, or nil
// when the wire event produces nothing. Only MapperStarted reacts to input:
// wire events before Open and after termination are ignored.
func Step(state MapperState, messageID string, w WireEvent) (MapperState, Event) {
	if state != MapperStarted {
		return state, nil
	}
	switch e := w.(type) {
	case WireChunk:
		if e.Content == "" {
			return state, nil
		}
		return state, EventContentDelta{MessageID: messageID, Delta: e.Content}
	case WireDone:
		return MapperTerminated, EventEnd{MessageID: messageID}
	case WireError:
		msg := e.Error
		if msg == "" {
			msg = unknownError
		}
		return MapperTerminated, EventError{Message: msg}
	default:
		return state, nil
	}
}

// Mapper holds the lifecycle state of one session around Step. It adds the
// two signals the wire format does not carry: the synthetic start on Open
// and the local end-of-stream and transport failure conditions.
//
// A Mapper is not safe for concurrent use.
type Mapper struct {
	id       string
	state    MapperState
	implicit bool
}

// NewMapper returns an idle Mapper that will stamp events with messageID.
func NewMapper(messageID string) *Mapper {
	return &Mapper{id: messageID}
}

// MessageID returns the identifier carried by this mapper's events.
func (m *Mapper) MessageID() string { return m.id }

// State returns the current lifecycle state.
func (m *Mapper) State() MapperState { return m.state }

// Implicit reports whether the session ended because the stream closed
// without an explicit done frame. Such an end is indistinguishable on the
// wire from a network truncation.
func (m *Mapper) Implicit() bool { return m.implicit }

// Open emits EventStart. It returns nil if the mapper was already opened.
func (m *Mapper) Open() Event {
	if m.state != MapperIdle {
		return nil
	}
	m.state = MapperStarted
	return EventStart{MessageID: m.id}
}

// Feed folds one wire event. See Step.
func (m *Mapper) Feed(w WireEvent) Event {
	var evt Event
	m.state, evt = Step(m.state, m.id, w)
	return evt
}

// Finish signals that the byte stream ended. A started session without a
// terminal wire event ends with EventEnd and is marked implicit.
func (m *Mapper) Finish() Event {
	if m.state != MapperStarted {
		return nil
	}
	m.implicit = true
	return m.Feed(WireDone{})
}

// Fail signals a transport failure and emits EventError describing err.
func (m *Mapper) Fail(err error) Event {
	return m.Feed(WireError{Error: err.Error()})
}

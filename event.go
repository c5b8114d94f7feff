package streamchat

// EventKind names a lifecycle event on the wire. The values match the AG-UI
// text message event types.
type EventKind string

const (
	KindStart        EventKind = "text_message_start"
	KindContentDelta EventKind = "text_message_content"
	KindEnd          EventKind = "text_message_end"
	KindError        EventKind = "error"
)

// Event is a sealed interface representing one lifecycle event of a
// streamed assistant message. Every session produces
//
//	EventStart EventContentDelta* (EventEnd | EventError)
//
// with a single MessageID throughout. The unexported marker method prevents
// external implementations.
type Event interface {
	Kind() EventKind
	event()
}

// EventStart opens a message. It is always the first event of a session.
type EventStart struct {
	MessageID string
}

func (EventStart) event() {}

// Kind returns KindStart.
func (EventStart) Kind() EventKind { return KindStart }

// EventContentDelta carries a non-empty fragment of assistant text.
type EventContentDelta struct {
	MessageID string
	Delta     string
}

func (EventContentDelta) event() {}

// Kind returns KindContentDelta.
func (EventContentDelta) Kind() EventKind { return KindContentDelta }

// EventEnd closes a successfully completed message.
type EventEnd struct {
	MessageID string
}

func (EventEnd) event() {}

// Kind returns KindEnd.
func (EventEnd) Kind() EventKind { return KindEnd }

// EventError terminates a session in place of EventEnd.
type EventError struct {
	Message string
}

func (EventError) event() {}

// Kind returns KindError.
func (EventError) Kind() EventKind { return KindError }

// Error implements error so an EventError can be handed to callers that
// expect one.
func (e EventError) Error() string { return e.Message }

// Terminal reports whether evt ends a session.
func Terminal(evt Event) bool {
	switch evt.(type) {
	case EventEnd, EventError:
		return true
	}
	return false
}

// Interface compliance checks.
var (
	_ Event = EventStart{}
	_ Event = EventContentDelta{}
	_ Event = EventEnd{}
	_ Event = EventError{}
	_ error = EventError{}
)

package mock

import (
	"io"

	"github.com/fwojciec/streamchat"
)

// Stream is a test double for streamchat.Stream.
// Set the function fields for the methods you need.
type Stream struct {
	NextFn      func() (streamchat.Event, error)
	StateFn     func() streamchat.StreamState
	MessageIDFn func() string
	CloseFn     func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (streamchat.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn.
func (s *Stream) State() streamchat.StreamState {
	return s.StateFn()
}

// MessageID delegates to MessageIDFn.
func (s *Stream) MessageID() string {
	return s.MessageIDFn()
}

// Close delegates to CloseFn.
func (s *Stream) Close() error {
	return s.CloseFn()
}

// Replay returns a Stream that yields events in order and then io.EOF.
// Its State follows the events it has handed out, and Close before the
// last event switches it to StreamStateClosed.
func Replay(messageID string, events ...streamchat.Event) *Stream {
	state := streamchat.StreamStateNew
	i := 0
	return &Stream{
		NextFn: func() (streamchat.Event, error) {
			if state == streamchat.StreamStateClosed || i >= len(events) {
				return nil, io.EOF
			}
			evt := events[i]
			i++
			switch evt.(type) {
			case streamchat.EventEnd:
				state = streamchat.StreamStateComplete
			case streamchat.EventError:
				state = streamchat.StreamStateError
			default:
				state = streamchat.StreamStateStreaming
			}
			return evt, nil
		},
		StateFn:     func() streamchat.StreamState { return state },
		MessageIDFn: func() string { return messageID },
		CloseFn: func() error {
			if state != streamchat.StreamStateComplete && state != streamchat.StreamStateError {
				state = streamchat.StreamStateClosed
			}
			return nil
		},
	}
}

package streamchat

import (
	"context"
	"io"
	"iter"
)

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // EventStart delivered, no terminal event yet.
	StreamStateComplete                     // EventEnd delivered.
	StreamStateError                        // EventError delivered.
	StreamStateClosed                       // Aborted before a terminal event.
)

// Stream is a pull-based sequence of lifecycle events for one session.
//
// Next blocks until the next event is available. After the terminal event
// (EventEnd or EventError) it returns io.EOF. Transport failures are never
// returned from Next; they arrive as EventError.
//
// Close aborts the session: it releases the transport synchronously and
// makes Next return io.EOF without a synthetic EventError. Close may be
// called from any goroutine, including while Next is blocked. Calling it
// twice, or after the terminal event, is a no-op. Cancelling the context
// given to Client.Open has the same effect.
//
// Concurrent calls to Next are not allowed.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	MessageID() string
	Close() error
}

// Client opens streaming sessions. Open sends history, which must already
// include the newest user message, and returns the session's Stream. The
// only errors returned from Open are those detected before the request
// could be issued, such as ErrValidation.
type Client interface {
	Open(ctx context.Context, history []Message) (Stream, error)
}

// All returns an iterator over the remaining events of s. Iteration stops
// at io.EOF or at the first other error from Next.
func All(s Stream) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			evt, err := s.Next()
			if err != nil {
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Collect drains s and returns its events. It returns the first error from
// Next other than io.EOF.
func Collect(s Stream) ([]Event, error) {
	var events []Event
	for {
		evt, err := s.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, evt)
	}
}

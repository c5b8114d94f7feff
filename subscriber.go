package streamchat

import (
	"context"
	"strings"
)

// Subscriber is a set of optional callbacks receiving one session's events.
// Callbacks run synchronously on the goroutine that called Run, in the order
// the events are produced:
//
//	OnStart, OnDelta*, (OnEnd | OnError), OnComplete
//
// OnComplete always fires last, whatever the outcome, including aborts.
type Subscriber struct {
	OnStart    func(messageID string)
	OnDelta    func(delta string)
	OnEnd      func(messageID, fullText string) // fullText is every delta joined
	OnError    func(err error)
	OnComplete func()
}

// Run opens a session on c and delivers its events to sub until the session
// ends. It returns the error from Open, which is also passed to OnError, or
// the context error when the session was aborted by cancelling ctx, or
// ErrStreamClosed when the stream was closed some other way. A
// session that ends in EventError returns nil: the error is delivered
// through OnError.
func Run(ctx context.Context, c Client, history []Message, sub Subscriber) error {
	defer sub.complete()

	s, err := c.Open(ctx, history)
	if err != nil {
		sub.fail(err)
		return err
	}
	defer s.Close()

	var text strings.Builder
	for evt := range All(s) {
		sub.deliver(evt, &text)
	}
	if s.State() == StreamStateClosed {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrStreamClosed
	}
	return nil
}

func (sub Subscriber) deliver(evt Event, text *strings.Builder) {
	switch e := evt.(type) {
	case EventStart:
		text.Reset()
		if sub.OnStart != nil {
			sub.OnStart(e.MessageID)
		}
	case EventContentDelta:
		text.WriteString(e.Delta)
		if sub.OnDelta != nil {
			sub.OnDelta(e.Delta)
		}
	case EventEnd:
		if sub.OnEnd != nil {
			sub.OnEnd(e.MessageID, text.String())
		}
	case EventError:
		sub.fail(e)
	}
}

func (sub Subscriber) fail(err error) {
	if sub.OnError != nil {
		sub.OnError(err)
	}
}

func (sub Subscriber) complete() {
	if sub.OnComplete != nil {
		sub.OnComplete()
	}
}

package streamchat

import "context"

// Generator produces the assistant reply for a history as a sequence of
// text fragments. It is the backend side of a streaming session: the
// server package turns each fragment into a chunk frame.
//
// Generate calls emit once per fragment, in order, and returns when the
// reply is complete. An error from emit must stop generation and be
// returned. Cancelling ctx stops generation.
type Generator interface {
	Generate(ctx context.Context, history []Message, emit func(text string) error) error
}

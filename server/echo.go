package server

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/streamchat"
)

var _ streamchat.Generator = (*Echo)(nil)

// Echo is a Generator that repeats the last user message back, a few
// characters at a time. It needs no credentials, which makes it the default
// backend for local development.
type Echo struct {
	// Size is the number of runes per fragment. Zero means 4.
	Size int
	// Delay is the pause before each fragment.
	Delay time.Duration
}

// Generate implements streamchat.Generator.
func (e *Echo) Generate(ctx context.Context, history []streamchat.Message, emit func(string) error) error {
	text := "You said: " + lastUserMessage(history)
	size := e.Size
	if size <= 0 {
		size = 4
	}

	for text != "" {
		n, i := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		if e.Delay > 0 {
			select {
			case <-time.After(e.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(text[:i]); err != nil {
			return err
		}
		text = text[i:]
	}
	return nil
}

func lastUserMessage(history []streamchat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == streamchat.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

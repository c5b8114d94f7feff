// Package mock provides test doubles for streamchat interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/streamchat"
)

// Interface compliance checks.
var (
	_ streamchat.Client = (*Client)(nil)
	_ streamchat.Stream = (*Stream)(nil)
)

// Client is a test double for streamchat.Client.
// Set OpenFn before calling Open.
type Client struct {
	OpenFn func(ctx context.Context, history []streamchat.Message) (streamchat.Stream, error)
}

// Open delegates to OpenFn.
func (c *Client) Open(ctx context.Context, history []streamchat.Message) (streamchat.Stream, error) {
	return c.OpenFn(ctx, history)
}

package agui

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/json"
	"github.com/rs/zerolog"
)

// Interface compliance check.
var _ streamchat.Client = (*Client)(nil)

// Client opens streaming chat sessions against one endpoint.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithAPIKey sends key as a bearer credential on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithModel asks the backend for a specific model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a [Client] for the streaming endpoint at url. An empty url
// selects [DefaultURL].
func New(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open starts a session for history. The request is issued in the
// background, so the returned stream yields EventStart without waiting for
// the response. Open fails only when the request cannot be built.
func (c *Client) Open(ctx context.Context, history []streamchat.Message) (streamchat.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, history)
	if err != nil {
		cancel()
		return nil, err
	}

	id := streamchat.NewMessageID()
	s := newStream(ctx, cancel, id, c.logger.With().Str("message_id", id).Logger())
	go s.do(c.httpClient, req)
	return s, nil
}

// OpenWire starts a session and returns the raw wire events instead of
// lifecycle events. Unlike Open it waits for the response: a transport
// failure is returned here rather than as a wire event.
func (c *Client) OpenWire(ctx context.Context, history []streamchat.Message) (*WireStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, history)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agui: %w", err)
	}
	if !successful(resp.StatusCode) {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("agui: "+httpStatusError, resp.StatusCode)
	}
	return newWireStream(resp.Body, cancel, c.logger), nil
}

func (c *Client) newRequest(ctx context.Context, history []streamchat.Message) (*http.Request, error) {
	if err := streamchat.Validate(history); err != nil {
		return nil, fmt.Errorf("agui: %w", err)
	}
	body, err := json.MarshalRequest(history, c.model)
	if err != nil {
		return nil, fmt.Errorf("agui: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agui: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

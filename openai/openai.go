// Package openai implements [streamchat.Generator] for the OpenAI Chat
// Completions API using github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/streamchat"
	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = goopenai.GPT4o

// Interface compliance check.
var _ streamchat.Generator = (*Client)(nil)

// Client implements [streamchat.Generator] for the OpenAI Chat Completions API.
type Client struct {
	client *goopenai.Client
	model  string
	logger zerolog.Logger
}

// Option configures a [Client].
type Option func(*config)

type config struct {
	model   string
	baseURL string
	logger  zerolog.Logger
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL sets the API base URL, including the version path. Useful for
// testing and for OpenAI-compatible servers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLogger sets the logger used for usage diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a new OpenAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	cfg := config{model: defaultModel, logger: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	oc := goopenai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		oc.BaseURL = cfg.baseURL
	}
	return &Client{
		client: goopenai.NewClientWithConfig(oc),
		model:  cfg.model,
		logger: cfg.logger,
	}
}

// Generate streams a chat completion for history.
func (c *Client) Generate(ctx context.Context, history []streamchat.Message, emit func(string) error) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:         c.model,
		Messages:      ConvertMessages(history),
		Stream:        true,
		StreamOptions: &goopenai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		if resp.Usage != nil {
			u := usageFrom(resp.Usage)
			c.logger.Debug().
				Int("input_tokens", u.InputTokens).
				Int("cache_read_tokens", u.CacheReadTokens).
				Int("output_tokens", u.OutputTokens).
				Msg("openai message complete")
		}
		for _, choice := range resp.Choices {
			if choice.Index != 0 || choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
}

// ConvertMessages converts chat history to Chat Completions messages.
// Exported for testing.
func ConvertMessages(msgs []streamchat.Message) []goopenai.ChatCompletionMessage {
	result := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case streamchat.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case streamchat.RoleUser:
			role = goopenai.ChatMessageRoleUser
		case streamchat.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		default:
			continue
		}
		result = append(result, goopenai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return result
}

// usageFrom normalizes OpenAI usage. PromptTokens includes cached tokens.
func usageFrom(u *goopenai.Usage) streamchat.Usage {
	var cached int
	if u.PromptTokensDetails != nil {
		cached = u.PromptTokensDetails.CachedTokens
	}
	return streamchat.Usage{
		InputTokens:     max(0, u.PromptTokens-cached),
		OutputTokens:    u.CompletionTokens,
		CacheReadTokens: cached,
	}
}

package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/streamchat"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ streamchat.Generator = (*Client)(nil)

// Client implements [streamchat.Generator] for the Google Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// Option configures a [Client].
type Option func(*config)

type config struct {
	model     string
	maxTokens int
	baseURL   string
	logger    zerolog.Logger
}

// WithModel sets the model ID. Default is gemini-3.1-pro-preview.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithMaxTokens overrides the default output token limit.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLogger sets the logger used for usage diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	cfg := config{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{
		client:    gc,
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		logger:    cfg.logger,
	}, nil
}

// Generate streams a reply to history, emitting the text of every
// non-thought part.
func (c *Client) Generate(ctx context.Context, history []streamchat.Message, emit func(string) error) error {
	contents := ConvertMessages(history)
	config := buildConfig(history, c.maxTokens)

	var usage *genai.GenerateContentResponseUsageMetadata
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		for _, text := range textParts(resp) {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if usage != nil {
		u := usageFrom(usage)
		c.logger.Debug().
			Int("input_tokens", u.InputTokens).
			Int("cache_read_tokens", u.CacheReadTokens).
			Int("output_tokens", u.OutputTokens).
			Msg("gemini message complete")
	}
	return nil
}

// usageFrom normalizes Gemini usage. PromptTokenCount includes cached
// tokens.
func usageFrom(m *genai.GenerateContentResponseUsageMetadata) streamchat.Usage {
	cached := int(m.CachedContentTokenCount)
	return streamchat.Usage{
		InputTokens:     max(0, int(m.PromptTokenCount)-cached),
		OutputTokens:    int(m.CandidatesTokenCount),
		CacheReadTokens: cached,
	}
}

// textParts returns the reply text carried by resp, skipping thoughts.
func textParts(resp *genai.GenerateContentResponse) []string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		out = append(out, p.Text)
	}
	return out
}

func buildConfig(history []streamchat.Message, maxTokens int) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	var system []string
	for _, msg := range history {
		if msg.Role == streamchat.RoleSystem {
			system = append(system, msg.Content)
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return config
}

// ConvertMessages converts chat history to genai Contents. System messages
// are carried by the request config instead.
// Exported for testing.
func ConvertMessages(msgs []streamchat.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case streamchat.RoleUser:
			role = genai.RoleUser
		case streamchat.RoleAssistant:
			role = genai.RoleModel
		default:
			continue
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return result
}

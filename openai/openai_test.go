package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var history = []streamchat.Message{
	{Role: streamchat.RoleSystem, Content: "Be brief."},
	{Role: streamchat.RoleUser, Content: "Hi"},
}

func completionHandler(captured *map[string]any, chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func newClient(t *testing.T, h http.Handler, opts ...openai.Option) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return openai.New("test-key", append([]openai.Option{openai.WithBaseURL(srv.URL + "/v1")}, opts...)...)
}

func TestConvertMessages(t *testing.T) {
	t.Parallel()

	got := openai.ConvertMessages(append(history, streamchat.Message{Role: streamchat.RoleAssistant, Content: "Hello"}))
	require.Len(t, got, 3)
	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "user", got[1].Role)
	assert.Equal(t, "assistant", got[2].Role)
	assert.Equal(t, "Hello", got[2].Content)
}

func TestClient_Generate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	c := newClient(t, completionHandler(&body,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
	), openai.WithModel("gpt-4o-mini"))

	var got []string
	err := c.Generate(context.Background(), history, func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, true, body["stream"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestClient_GenerateHTTPError(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))

	err := c.Generate(context.Background(), history, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai:")
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestClient_GenerateEmitError(t *testing.T) {
	t.Parallel()

	c := newClient(t, completionHandler(nil,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"a"}}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"b"}}]}`,
	))

	errStop := fmt.Errorf("stop")
	calls := 0
	err := c.Generate(context.Background(), history, func(string) error {
		calls++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

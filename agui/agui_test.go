package agui_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/agui"
	"github.com/stretchr/testify/require"
)

// history is the minimal valid request history used across tests.
var history = []streamchat.Message{{Role: streamchat.RoleUser, Content: "Hi"}}

// frameHandler writes each frame as a data line and flushes after each one.
func frameHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func openFromHandler(t *testing.T, h http.Handler, opts ...agui.Option) streamchat.Stream {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	stream, err := agui.New(srv.URL, opts...).Open(context.Background(), history)
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// chunkReader returns each chunk from a separate Read call.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.chunks) > 0 && len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	return n, nil
}

// chunkClient returns an HTTP client whose responses deliver chunks as
// separate reads, independent of any network buffering.
func chunkClient(status int, chunks ...string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		bs := make([][]byte, len(chunks))
		for i, c := range chunks {
			bs[i] = []byte(c)
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(&chunkReader{chunks: bs}),
			Request:    r,
		}, nil
	})}
}

func openChunks(t *testing.T, chunks ...string) streamchat.Stream {
	t.Helper()
	client := agui.New("http://backend.test/stream", agui.WithHTTPClient(chunkClient(http.StatusOK, chunks...)))
	stream, err := client.Open(context.Background(), history)
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func collectEvents(t *testing.T, s streamchat.Stream) []streamchat.Event {
	t.Helper()
	events, err := streamchat.Collect(s)
	require.NoError(t, err)
	return events
}

// syncBuffer is a bytes.Buffer safe for a logger shared across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

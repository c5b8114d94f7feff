package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/agui"
	"github.com/fwojciec/streamchat/mock"
	"github.com/fwojciec/streamchat/server"
	"github.com/fwojciec/streamchat/ws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var history = []streamchat.Message{{Role: streamchat.RoleUser, Content: "Hi there"}}

func newServer(t *testing.T, gen streamchat.Generator, opts ...server.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.New(gen, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func text(events []streamchat.Event) string {
	var b strings.Builder
	for _, e := range events {
		if d, ok := e.(streamchat.EventContentDelta); ok {
			b.WriteString(d.Delta)
		}
	}
	return b.String()
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{})
	resp, err := http.Get(srv.URL + server.HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StreamEcho(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{Size: 3})
	stream, err := agui.New(srv.URL+server.StreamPath).Open(context.Background(), history)
	require.NoError(t, err)
	defer stream.Close()

	events, err := streamchat.Collect(stream)
	require.NoError(t, err)

	id := stream.MessageID()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, streamchat.EventStart{MessageID: id}, events[0])
	assert.Equal(t, streamchat.EventEnd{MessageID: id}, events[len(events)-1])
	assert.Equal(t, "You said: Hi there", text(events))
	assert.Equal(t, streamchat.EventContentDelta{MessageID: id, Delta: "You"}, events[1])
}

func TestServer_StreamGeneratorError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, mock.Fragments(errors.New("backend down"), "par", "", "tial"))
	stream, err := agui.New(srv.URL+server.StreamPath).Open(context.Background(), history)
	require.NoError(t, err)
	defer stream.Close()

	events, err := streamchat.Collect(stream)
	require.NoError(t, err)
	id := stream.MessageID()
	assert.Equal(t, []streamchat.Event{
		streamchat.EventStart{MessageID: id},
		streamchat.EventContentDelta{MessageID: id, Delta: "par"},
		streamchat.EventContentDelta{MessageID: id, Delta: "tial"},
		streamchat.EventError{Message: "backend down"},
	}, events)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(int)           {}
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (w *brokenWriter) Flush()                    {}

func TestServer_StreamLogsFailedFinalWrite(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	srv := server.New(mock.Fragments(nil), server.WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))
	req := httptest.NewRequest(http.MethodPost, server.StreamPath,
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	srv.ServeHTTP(&brokenWriter{header: http.Header{}}, req)

	assert.Contains(t, logs.String(), `"message":"client went away"`)
	assert.Contains(t, logs.String(), "broken pipe")
}

func TestServer_RejectsBadRequest(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{})
	for _, body := range []string{
		`{"messages":`,
		`{"messages":[{"role":"robot","content":"x"}]}`,
	} {
		resp, err := http.Post(srv.URL+server.StreamPath, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{})
	resp, err := http.Get(srv.URL + server.StreamPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{}, server.WithAPIKey("secret"))

	t.Run("missing key yields HTTP error event", func(t *testing.T) {
		t.Parallel()
		stream, err := agui.New(srv.URL+server.StreamPath).Open(context.Background(), history)
		require.NoError(t, err)
		defer stream.Close()
		events, err := streamchat.Collect(stream)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, streamchat.EventError{Message: "HTTP error! status: 401"}, events[1])
	})

	t.Run("bearer key accepted", func(t *testing.T) {
		t.Parallel()
		stream, err := agui.New(srv.URL+server.StreamPath, agui.WithAPIKey("secret")).Open(context.Background(), history)
		require.NoError(t, err)
		defer stream.Close()
		events, err := streamchat.Collect(stream)
		require.NoError(t, err)
		assert.Equal(t, streamchat.StreamStateComplete, stream.State())
		assert.Equal(t, "You said: Hi there", text(events))
	})

	t.Run("health is public", func(t *testing.T) {
		t.Parallel()
		resp, err := http.Get(srv.URL + server.HealthPath)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServer_KeepAlive(t *testing.T) {
	t.Parallel()

	gen := &mock.Generator{GenerateFn: func(ctx context.Context, _ []streamchat.Message, emit func(string) error) error {
		time.Sleep(60 * time.Millisecond)
		return emit("late")
	}}
	srv := newServer(t, gen, server.WithKeepAlive(10*time.Millisecond))

	resp, err := http.Post(srv.URL+server.StreamPath, "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), ": keep-alive\n\n"), "body: %q", body)
	assert.Contains(t, string(body), "data: {\"type\":\"chunk\",\"content\":\"late\"}\n\n")
	assert.True(t, strings.HasSuffix(string(body), "data: {\"type\":\"done\"}\n\n"), "body: %q", body)
}

func TestServer_ClientAbortCancelsGenerator(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})
	gen := &mock.Generator{GenerateFn: func(ctx context.Context, _ []streamchat.Message, emit func(string) error) error {
		if err := emit("first"); err != nil {
			return err
		}
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}}
	srv := newServer(t, gen)

	stream, err := agui.New(srv.URL+server.StreamPath).Open(context.Background(), history)
	require.NoError(t, err)
	_, err = stream.Next()
	require.NoError(t, err)
	evt, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, streamchat.EventContentDelta{MessageID: stream.MessageID(), Delta: "first"}, evt)

	require.NoError(t, stream.Close())
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("generator was not cancelled")
	}
}

func TestServer_Socket(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{Size: 5})
	conn, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+server.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan streamchat.Event, 32)
	conn.OnEvent(func(evt streamchat.Event) { events <- evt })
	require.NoError(t, conn.SendChat(history))

	var got []streamchat.Event
	for {
		select {
		case evt := <-events:
			got = append(got, evt)
			if !streamchat.Terminal(evt) {
				continue
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for lifecycle events")
		}
		break
	}

	start, ok := got[0].(streamchat.EventStart)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(start.MessageID, "msg_"))
	assert.Equal(t, streamchat.EventEnd{MessageID: start.MessageID}, got[len(got)-1])
	assert.Equal(t, "You said: Hi there", text(got))
}

func TestServer_SocketRejectsInvalidHistory(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Echo{})
	conn, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+server.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan streamchat.Event, 1)
	conn.OnEvent(func(evt streamchat.Event) { events <- evt })
	require.NoError(t, conn.Send(ws.EventChat, map[string]any{
		"messages": []map[string]any{{"role": "robot", "content": "x"}},
	}))

	select {
	case evt := <-events:
		assert.IsType(t, streamchat.EventError{}, evt)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- server.New(&server.Echo{}).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + server.HealthPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestEcho_Fragments(t *testing.T) {
	t.Parallel()

	var got []string
	err := (&server.Echo{Size: 4}).Generate(context.Background(),
		[]streamchat.Message{
			{Role: streamchat.RoleUser, Content: "first"},
			{Role: streamchat.RoleAssistant, Content: "ignored"},
			{Role: streamchat.RoleUser, Content: " héllo "},
		},
		func(s string) error {
			got = append(got, s)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"You ", "said", ": hé", "llo"}, got)
}

func TestEcho_StopsOnEmitError(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	calls := 0
	err := (&server.Echo{}).Generate(context.Background(), history, func(string) error {
		calls++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

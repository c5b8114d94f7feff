package bubbletea_test

import (
	"context"
	"io"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/fwojciec/streamchat"
	bt "github.com/fwojciec/streamchat/bubbletea"
	"github.com/fwojciec/streamchat/mock"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, client streamchat.Client) bt.Model {
	t.Helper()
	return initModelWithSize(t, client, 80, 24)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, client streamchat.Client, width, height int) bt.Model {
	t.Helper()
	m := bt.New(client, nil, streamchat.DefaultTheme())
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// submit types s, presses Enter and delivers stream as the opened session.
func submit(t *testing.T, m bt.Model, s string, stream streamchat.Stream) bt.Model {
	t.Helper()
	m.Input = typeInputString(t, m.Input, s)
	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.Running())
	return updateModel(t, m, bt.StreamOpenedMsg{Stream: stream})
}

func typeInputString(t *testing.T, ti textinput.Model, s string) textinput.Model {
	t.Helper()
	for _, r := range s {
		ti, _ = ti.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return ti
}

// nopClient fails the test if a session is opened.
func nopClient(t *testing.T) *mock.Client {
	return &mock.Client{
		OpenFn: func(context.Context, []streamchat.Message) (streamchat.Stream, error) {
			t.Error("unexpected Open")
			return nil, io.EOF
		},
	}
}

// replayClient answers every Open with a fresh stream from next.
func replayClient(next func(history []streamchat.Message) streamchat.Stream) *mock.Client {
	return &mock.Client{
		OpenFn: func(_ context.Context, history []streamchat.Message) (streamchat.Stream, error) {
			return next(history), nil
		},
	}
}

// hangingStream yields EventStart and then blocks until Close, like a
// session waiting on a silent server.
type hangingStream struct {
	mu      sync.Mutex
	started bool
	state   streamchat.StreamState
	closed  chan struct{}
	once    sync.Once
}

func newHangingStream() *hangingStream {
	return &hangingStream{closed: make(chan struct{})}
}

func (s *hangingStream) Next() (streamchat.Event, error) {
	s.mu.Lock()
	if !s.started && s.state == streamchat.StreamStateNew {
		s.started = true
		s.state = streamchat.StreamStateStreaming
		s.mu.Unlock()
		return streamchat.EventStart{MessageID: "msg_hang"}, nil
	}
	s.mu.Unlock()
	<-s.closed
	return nil, io.EOF
}

func (s *hangingStream) State() streamchat.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *hangingStream) MessageID() string { return "msg_hang" }

func (s *hangingStream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.state = streamchat.StreamStateClosed
		s.mu.Unlock()
		close(s.closed)
	})
	return nil
}

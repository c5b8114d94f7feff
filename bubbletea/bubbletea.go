// Package bubbletea provides a Bubble Tea TUI for streamchat sessions.
package bubbletea

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/streamchat"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// StreamOpenedMsg carries the result of Client.Open for a submitted message.
type StreamOpenedMsg struct {
	Stream streamchat.Stream
	Err    error
}

// StreamEventMsg wraps a lifecycle event for delivery to the Bubble Tea model.
type StreamEventMsg struct {
	Event streamchat.Event
}

// StreamDoneMsg signals that the stream has no more events. Err is nil when
// Next returned io.EOF.
type StreamDoneMsg struct {
	Err error
}

// openStream opens a session in the background.
func openStream(ctx context.Context, c streamchat.Client, history []streamchat.Message) tea.Cmd {
	return func() tea.Msg {
		s, err := c.Open(ctx, history)
		return StreamOpenedMsg{Stream: s, Err: err}
	}
}

// nextEvent pulls one event from s. Each delivered event schedules the next
// pull, so the stream is consumed one event per Update.
func nextEvent(s streamchat.Stream) tea.Cmd {
	return func() tea.Msg {
		evt, err := s.Next()
		if errors.Is(err, io.EOF) {
			return StreamDoneMsg{}
		}
		if err != nil {
			return StreamDoneMsg{Err: err}
		}
		return StreamEventMsg{Event: evt}
	}
}

package bubbletea

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/goldmark"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the streamchat TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	client   streamchat.Client
	history  []streamchat.Message
	styles   Styles
	renderer *goldmark.Renderer

	blocks []MessageBlock
	// active receives the deltas of the in-flight message.
	active *AssistantTextBlock

	running   bool
	aborted   bool
	cancel    context.CancelFunc
	stream    streamchat.Stream
	messageID string
	graphemes int
	err       error
	ready     bool
}

// New creates a new TUI Model that sends history plus each submitted
// message through client.
func New(client streamchat.Client, history []streamchat.Message, theme streamchat.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		Input:    ti,
		client:   client,
		history:  history,
		styles:   NewStyles(theme),
		renderer: goldmark.NewRenderer(theme),
	}
}

// Running returns whether a session is in flight.
func (m Model) Running() bool { return m.running }

// Err returns the error of the last session, if any.
func (m Model) Err() error { return m.err }

// History returns the conversation so far. Assistant messages are added only
// for sessions that completed.
func (m Model) History() []streamchat.Message { return m.history }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamOpenedMsg:
		if msg.Err != nil {
			m.blocks = append(m.blocks, NewErrorBlock(msg.Err, m.styles))
			m.err = msg.Err
			return m.finish()
		}
		if m.aborted {
			_ = msg.Stream.Close()
			return m.finish()
		}
		m.stream = msg.Stream
		return m, nextEvent(m.stream)

	case StreamEventMsg:
		m = m.processEvent(msg.Event)
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
		if m.stream != nil {
			return m, nextEvent(m.stream)
		}
		return m, nil

	case StreamDoneMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}
		if m.aborted && m.active != nil {
			m.active.Stop()
		}
		return m.finish()
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.Viewport.View())
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")

	b.WriteString(m.Input.View())

	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderHistory()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			return m.abort(), nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)
	}

	// When idle, pass keys to both the input (for typing) and viewport
	// (for scrolling). Only non-character keys reach the viewport so that
	// 'j'/'k' type text instead of scrolling.
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.err = nil

	m.history = streamchat.Append(m.history, streamchat.UserMessage(text))
	m.blocks = append(m.blocks, NewUserMessageBlock(text, m.styles))
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.aborted = false
	m.messageID = ""
	m.graphemes = 0

	m.Input.Blur()

	return m, openStream(ctx, m.client, m.history)
}

// abort stops the in-flight session. The pending pull returns io.EOF and
// StreamDoneMsg completes the teardown.
func (m Model) abort() Model {
	m.aborted = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.stream != nil {
		_ = m.stream.Close()
	}
	return m
}

func (m Model) finish() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.cancel = nil
	m.stream = nil
	m.active = nil
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m, m.Input.Focus()
}

// renderHistory creates blocks from messages passed to New.
func (m Model) renderHistory() Model {
	for _, msg := range m.history {
		switch msg.Role {
		case streamchat.RoleUser:
			m.blocks = append(m.blocks, NewUserMessageBlock(msg.Content, m.styles))
		case streamchat.RoleAssistant:
			block := NewAssistantTextBlock(m.renderer, m.styles)
			block.Append(msg.Content)
			m.blocks = append(m.blocks, block)
		}
	}
	return m
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString(blockSeparator(m.blocks[i-1], block))
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// processEvent applies one lifecycle event to the conversation.
func (m Model) processEvent(evt streamchat.Event) Model {
	switch e := evt.(type) {
	case streamchat.EventStart:
		m.messageID = e.MessageID
		m.graphemes = 0
		m.active = NewAssistantTextBlock(m.renderer, m.styles)
		m.blocks = append(m.blocks, m.active)
	case streamchat.EventContentDelta:
		if m.active == nil {
			return m
		}
		m.active.Append(e.Delta)
		m.graphemes = uniseg.GraphemeClusterCount(m.active.Text())
	case streamchat.EventEnd:
		if m.active != nil {
			m.history = streamchat.Append(m.history, streamchat.AssistantMessage(m.active.Text()))
		}
		m.active = nil
	case streamchat.EventError:
		m.blocks = append(m.blocks, NewErrorBlock(e, m.styles))
		m.err = e
		m.active = nil
	}
	return m
}

func (m Model) statusLine() string {
	width := m.Viewport.Width
	switch {
	case m.running && m.aborted:
		return m.styles.Muted.Render(runewidth.Truncate("Stopping...", width, "…"))
	case m.running && m.messageID == "":
		return m.styles.Muted.Render(runewidth.Truncate("Connecting...", width, "…"))
	case m.running:
		line := fmt.Sprintf("Generating %s · %d chars · Ctrl+C to stop", m.messageID, m.graphemes)
		return m.styles.Muted.Render(runewidth.Truncate(line, width, "…"))
	case m.err != nil:
		return m.styles.Error.Render(runewidth.Truncate(fmt.Sprintf("Error: %v", m.err), width, "…"))
	}
	return m.styles.Muted.Render(runewidth.Truncate("Enter to send, Ctrl+C to quit", width, "…"))
}

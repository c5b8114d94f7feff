package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// MessageBlock is a renderable element in the conversation.
// Unlike tea.Model, View takes a width parameter so the root model
// controls layout and blocks are testable in isolation.
type MessageBlock interface {
	Update(tea.Msg) (MessageBlock, tea.Cmd)
	View(width int) string
}

// blockSeparator returns the spacing placed between two adjacent blocks. An
// error directly under the assistant text it interrupted stays attached to
// it; every other pair gets a blank line.
func blockSeparator(prev, curr MessageBlock) string {
	_, prevText := prev.(*AssistantTextBlock)
	_, currErr := curr.(*ErrorBlock)
	if prevText && currErr {
		return "\n"
	}
	return "\n\n"
}

// hangingIndent wraps text to width behind prefix. Continuation lines are
// indented by the prefix's display width and every line is padded to width.
func hangingIndent(prefix, text string, width int) string {
	prefixWidth := ansi.StringWidth(prefix)
	inner := width - prefixWidth
	if inner < 1 {
		inner = 1
	}
	wrapped := lipgloss.NewStyle().Width(inner).Render(text)
	pad := strings.Repeat(" ", prefixWidth)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = prefix + line
			continue
		}
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}

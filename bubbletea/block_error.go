package bubbletea

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/streamchat"
)

var _ MessageBlock = (*ErrorBlock)(nil)

// ErrorBlock renders a failed session. Protocol errors show the message the
// server sent; transport errors show the error chain.
type ErrorBlock struct {
	err    error
	styles Styles
}

// NewErrorBlock creates an ErrorBlock.
func NewErrorBlock(err error, styles Styles) *ErrorBlock {
	return &ErrorBlock{err: err, styles: styles}
}

func (b *ErrorBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	text := b.err.Error()
	var evt streamchat.EventError
	if errors.As(b.err, &evt) {
		text = evt.Message
	}
	return b.styles.Error.Render(hangingIndent("Error: ", text, width))
}

package sse

import (
	"fmt"
	"io"
	"net/http"
)

// Writer emits frames to an io.Writer, flushing after each one when the
// destination is an http.Flusher.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter returns a Writer for w.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// WriteData writes one data frame. payload must not contain a newline;
// encoding/json output never does.
func (w *Writer) WriteData(payload []byte) error {
	if _, err := fmt.Fprintf(w.w, "%s%s\n\n", Prefix, payload); err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	w.flush()
	return nil
}

// WriteComment writes a comment line. Clients ignore it; servers use it to
// keep idle connections open.
func (w *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	w.flush()
	return nil
}

func (w *Writer) flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}

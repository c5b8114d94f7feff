package agui

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/json"
	"github.com/fwojciec/streamchat/sse"
	"github.com/rs/zerolog"
)

// WireStream yields the raw wire events of one session, for consumers that
// render the legacy chunk/done/error format themselves.
type WireStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	frames *sse.Reader
	logger zerolog.Logger
	done   bool
	err    error
}

func newWireStream(body io.ReadCloser, cancel context.CancelFunc, logger zerolog.Logger) *WireStream {
	return &WireStream{
		body:   body,
		cancel: cancel,
		frames: sse.NewReader(body),
		logger: logger,
	}
}

// Next returns the next wire event. It returns io.EOF after a done or
// error event, or when the body ends. Malformed frames are skipped.
func (w *WireStream) Next() (streamchat.WireEvent, error) {
	if w.done {
		return nil, io.EOF
	}
	for {
		frame, err := w.frames.Next()
		if err != nil {
			w.Close()
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			w.err = err
			return nil, err
		}
		evt, err := json.UnmarshalWireEvent([]byte(frame))
		if err != nil {
			w.logger.Warn().Err(err).Str("frame", frame).Msg("skipping malformed frame")
			continue
		}
		switch evt.(type) {
		case streamchat.WireDone, streamchat.WireError:
			w.Close()
		}
		return evt, nil
	}
}

// All returns an iterator over the remaining wire events. Iteration stops
// at the first error from Next; check Err afterwards.
func (w *WireStream) All() iter.Seq[streamchat.WireEvent] {
	return func(yield func(streamchat.WireEvent) bool) {
		defer w.Close()
		for {
			evt, err := w.Next()
			if err != nil {
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Err returns the first transport error seen by Next, or nil if the stream
// ended with a done or error event, ended cleanly, or was closed.
func (w *WireStream) Err() error { return w.err }

// Close releases the response body. It is safe to call more than once.
func (w *WireStream) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.cancel()
	return w.body.Close()
}

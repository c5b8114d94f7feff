package agui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/json"
	"github.com/fwojciec/streamchat/sse"
	"github.com/rs/zerolog"
)

// Interface compliance check.
var _ streamchat.Stream = (*stream)(nil)

// response is the outcome of the background request.
type response struct {
	resp *http.Response
	err  error
}

// stream implements [streamchat.Stream] for one HTTP session.
//
// Next runs on the consumer goroutine and owns mapper and frames. Close may
// run anywhere; mu guards the fields it shares with Next and with the
// request goroutine.
type stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
	mapper *streamchat.Mapper
	result chan response
	frames *sse.Reader

	mu     sync.Mutex
	state  streamchat.StreamState
	body   io.ReadCloser
	closed bool
}

func newStream(ctx context.Context, cancel context.CancelFunc, id string, logger zerolog.Logger) *stream {
	return &stream{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		mapper: streamchat.NewMapper(id),
		result: make(chan response, 1),
		state:  streamchat.StreamStateNew,
	}
}

// do issues req and hands the outcome to Next. A response that arrives
// after Close is released here since nobody will read it.
func (s *stream) do(hc *http.Client, req *http.Request) {
	resp, err := hc.Do(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if err == nil {
			resp.Body.Close()
		}
		return
	}
	s.result <- response{resp: resp, err: err}
}

// Next returns the next lifecycle event, or io.EOF after the terminal event
// or once the session was aborted.
func (s *stream) Next() (streamchat.Event, error) {
	switch s.State() {
	case streamchat.StreamStateNew:
		if s.ctx.Err() != nil {
			s.abort()
			return nil, io.EOF
		}
		evt := s.mapper.Open()
		s.setState(streamchat.StreamStateStreaming)
		return evt, nil
	case streamchat.StreamStateStreaming:
	default:
		return nil, io.EOF
	}

	if s.frames == nil {
		if err := s.await(); err != nil {
			if s.ctx.Err() != nil {
				s.abort()
				return nil, io.EOF
			}
			return s.finish(s.mapper.Fail(err))
		}
	}

	for {
		frame, err := s.frames.Next()
		if s.ctx.Err() != nil {
			s.abort()
			return nil, io.EOF
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.finish(s.endOfStream())
			}
			return s.finish(s.mapper.Fail(err))
		}

		w, err := json.UnmarshalWireEvent([]byte(frame))
		if err != nil {
			s.logger.Warn().Err(err).Str("frame", frame).Msg("skipping malformed frame")
			continue
		}
		if evt := s.mapper.Feed(w); evt != nil {
			if streamchat.Terminal(evt) {
				return s.finish(evt)
			}
			return evt, nil
		}
	}
}

// await blocks until the response arrives and attaches its body. It returns
// the transport failure, if any.
func (s *stream) await() error {
	var res response
	select {
	case res = <-s.result:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	if res.err != nil {
		return res.err
	}
	if !successful(res.resp.StatusCode) {
		res.resp.Body.Close()
		return fmt.Errorf(httpStatusError, res.resp.StatusCode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		res.resp.Body.Close()
		return context.Canceled
	}
	s.body = res.resp.Body
	s.frames = sse.NewReader(res.resp.Body)
	return nil
}

func (s *stream) endOfStream() streamchat.Event {
	if n := s.frames.Discarded(); n > 0 {
		s.logger.Warn().Int("bytes", n).Msg("discarding unterminated frame at end of stream")
	}
	evt := s.mapper.Finish()
	if s.mapper.Implicit() {
		s.logger.Warn().Msg("stream ended without done frame")
	}
	return evt
}

// finish records the terminal event and releases the transport.
func (s *stream) finish(evt streamchat.Event) (streamchat.Event, error) {
	if evt == nil {
		s.abort()
		return nil, io.EOF
	}
	state := streamchat.StreamStateComplete
	if e, ok := evt.(streamchat.EventError); ok {
		state = streamchat.StreamStateError
		s.logger.Debug().Str("error", e.Message).Msg("stream failed")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, io.EOF
	}
	s.state = state
	body := s.body
	s.mu.Unlock()

	s.cancel()
	if body != nil {
		body.Close()
	}
	return evt, nil
}

// State returns the current stream state.
func (s *stream) State() streamchat.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stream) setState(state streamchat.StreamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// MessageID returns the identifier stamped on every event of this session.
func (s *stream) MessageID() string {
	return s.mapper.MessageID()
}

// Close aborts the session. It is a no-op after the terminal event.
func (s *stream) Close() error {
	s.abort()
	return nil
}

func (s *stream) abort() {
	s.mu.Lock()
	if s.closed || s.state == streamchat.StreamStateComplete || s.state == streamchat.StreamStateError {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = streamchat.StreamStateClosed
	body := s.body
	select {
	case res := <-s.result:
		if res.err == nil {
			res.resp.Body.Close()
		}
	default:
	}
	s.mu.Unlock()

	s.cancel()
	if body != nil {
		body.Close()
	}
	s.logger.Debug().Msg("stream aborted")
}

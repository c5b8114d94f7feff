package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/json"
	"github.com/fwojciec/streamchat/sse"
)

// maxRequestBody bounds the size of a chat request.
const maxRequestBody = 1 << 20

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	history, ok := s.readHistory(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sw := sse.NewWriter(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	chunks := make(chan string)
	errc := make(chan error, 1)
	go func() {
		errc <- s.gen.Generate(ctx, history, func(text string) error {
			select {
			case chunks <- text:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		t := time.NewTicker(s.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	logger := s.logger.With().Int("messages", len(history)).Logger()
	for {
		select {
		case text := <-chunks:
			if err := writeWire(sw, streamchat.WireChunk{Content: text}); err != nil {
				logger.Debug().Err(err).Msg("client went away")
				return
			}
		case <-tick:
			if err := sw.WriteComment("keep-alive"); err != nil {
				logger.Debug().Err(err).Msg("client went away")
				return
			}
		case err := <-errc:
			var final streamchat.WireEvent = streamchat.WireDone{}
			switch {
			case ctx.Err() != nil:
				logger.Debug().Msg("client went away")
				return
			case err != nil:
				logger.Warn().Err(err).Msg("generation failed")
				final = streamchat.WireError{Error: err.Error()}
			}
			if err := writeWire(sw, final); err != nil {
				logger.Debug().Err(err).Msg("client went away")
			}
			return
		}
	}
}

// readHistory decodes and validates the request body, answering 400 on
// failure.
func (s *Server) readHistory(w http.ResponseWriter, r *http.Request) ([]streamchat.Message, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	history, _, err := json.UnmarshalRequest(data)
	if err == nil {
		err = streamchat.Validate(history)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejecting chat request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return history, true
}

func writeWire(sw *sse.Writer, w streamchat.WireEvent) error {
	data, err := json.MarshalWireEvent(w)
	if err != nil {
		return err
	}
	return sw.WriteData(data)
}

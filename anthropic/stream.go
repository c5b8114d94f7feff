package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/sse"
	"github.com/rs/zerolog"
)

// errUnexpectedEOF reports a body that ended before message_stop.
var errUnexpectedEOF = errors.New("anthropic: unexpected end of stream")

// stream folds the Messages API event stream into text deltas.
type stream struct {
	frames *sse.Reader
	logger zerolog.Logger
	usage  streamchat.Usage
	stop   string
}

func newStream(body io.Reader, logger zerolog.Logger) *stream {
	return &stream{frames: sse.NewReader(body), logger: logger}
}

// run reads until message_stop, passing text deltas to emit.
func (s *stream) run(emit func(string) error) error {
	for {
		data, err := s.frames.Next()
		if errors.Is(err, io.EOF) {
			return errUnexpectedEOF
		}
		if err != nil {
			return fmt.Errorf("anthropic: %w", err)
		}

		done, err := s.process([]byte(data), emit)
		if err != nil || done {
			return err
		}
	}
}

// process handles one payload. It reports done after message_stop.
func (s *stream) process(data []byte, emit func(string) error) (bool, error) {
	var env sseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("anthropic: failed to parse event: %w", err)
	}

	switch env.Type {
	case "message_start":
		var evt sseMessageStart
		if err := json.Unmarshal(data, &evt); err != nil {
			return false, fmt.Errorf("anthropic: failed to parse message_start: %w", err)
		}
		s.usage.InputTokens = evt.Message.Usage.InputTokens
		s.usage.CacheReadTokens = evt.Message.Usage.CacheReadInputTokens
		s.usage.CacheWriteTokens = evt.Message.Usage.CacheCreationInputTokens
	case "content_block_delta":
		var evt sseContentBlockDelta
		if err := json.Unmarshal(data, &evt); err != nil {
			return false, fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
		}
		// Thinking, signature and tool input deltas are not part of the reply text.
		if evt.Delta.Type == "text_delta" && evt.Delta.Text != "" {
			return false, emit(evt.Delta.Text)
		}
	case "message_delta":
		var evt sseMessageDelta
		if err := json.Unmarshal(data, &evt); err != nil {
			return false, fmt.Errorf("anthropic: failed to parse message_delta: %w", err)
		}
		s.usage.OutputTokens = evt.Usage.OutputTokens
		if evt.Delta.StopReason != nil {
			s.stop = *evt.Delta.StopReason
		}
	case "message_stop":
		s.logger.Debug().
			Int("input_tokens", s.usage.InputTokens).
			Int("cache_read_tokens", s.usage.CacheReadTokens).
			Int("cache_write_tokens", s.usage.CacheWriteTokens).
			Int("output_tokens", s.usage.OutputTokens).
			Str("stop_reason", s.stop).
			Msg("anthropic message complete")
		if s.stop == "max_tokens" {
			s.logger.Warn().Msg("anthropic reply truncated at max_tokens")
		}
		return true, nil
	case "error":
		var evt sseError
		if err := json.Unmarshal(data, &evt); err != nil {
			return false, fmt.Errorf("anthropic: failed to parse error event: %w", err)
		}
		return false, fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
	}
	// ping, content_block_start, content_block_stop and unknown types.
	return false, nil
}

package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/streamchat"
)

// Wire event type discriminators.
const (
	wireChunk = "chunk"
	wireDone  = "done"
	wireError = "error"
)

// wireEventDTO is the payload of one stream frame.
type wireEventDTO struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UnmarshalWireEvent decodes one frame payload. Malformed JSON and unknown
// type values are errors; callers decide whether to skip the frame.
func UnmarshalWireEvent(data []byte) (streamchat.WireEvent, error) {
	var dto wireEventDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal wire event: %w", err)
	}
	switch dto.Type {
	case wireChunk:
		return streamchat.WireChunk{Content: dto.Content}, nil
	case wireDone:
		return streamchat.WireDone{}, nil
	case wireError:
		return streamchat.WireError{Error: dto.Error}, nil
	default:
		return nil, fmt.Errorf("unknown wire event type %q", dto.Type)
	}
}

// MarshalWireEvent encodes a wire event as a frame payload.
func MarshalWireEvent(w streamchat.WireEvent) ([]byte, error) {
	var dto wireEventDTO
	switch e := w.(type) {
	case streamchat.WireChunk:
		dto = wireEventDTO{Type: wireChunk, Content: e.Content}
	case streamchat.WireDone:
		dto = wireEventDTO{Type: wireDone}
	case streamchat.WireError:
		dto = wireEventDTO{Type: wireError, Error: e.Error}
	default:
		return nil, fmt.Errorf("unknown wire event: %T", w)
	}
	return json.Marshal(dto)
}

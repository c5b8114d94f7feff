package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/streamchat"
)

// eventDTO is the AG-UI JSON representation of a lifecycle event.
type eventDTO struct {
	Type      streamchat.EventKind `json:"type"`
	MessageID string               `json:"messageId,omitempty"`
	Role      string               `json:"role,omitempty"`
	Delta     string               `json:"delta,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// MarshalEvent encodes a lifecycle event as an AG-UI JSON object.
func MarshalEvent(evt streamchat.Event) ([]byte, error) {
	var dto eventDTO
	switch e := evt.(type) {
	case streamchat.EventStart:
		dto = eventDTO{Type: e.Kind(), MessageID: e.MessageID, Role: string(streamchat.RoleAssistant)}
	case streamchat.EventContentDelta:
		dto = eventDTO{Type: e.Kind(), MessageID: e.MessageID, Delta: e.Delta}
	case streamchat.EventEnd:
		dto = eventDTO{Type: e.Kind(), MessageID: e.MessageID}
	case streamchat.EventError:
		dto = eventDTO{Type: e.Kind(), Error: e.Message}
	default:
		return nil, fmt.Errorf("unknown event: %T", evt)
	}
	return json.Marshal(dto)
}

// UnmarshalEvent decodes an AG-UI JSON object into a lifecycle event.
func UnmarshalEvent(data []byte) (streamchat.Event, error) {
	var dto eventDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	switch dto.Type {
	case streamchat.KindStart:
		return streamchat.EventStart{MessageID: dto.MessageID}, nil
	case streamchat.KindContentDelta:
		return streamchat.EventContentDelta{MessageID: dto.MessageID, Delta: dto.Delta}, nil
	case streamchat.KindEnd:
		return streamchat.EventEnd{MessageID: dto.MessageID}, nil
	case streamchat.KindError:
		return streamchat.EventError{Message: dto.Error}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", dto.Type)
	}
}

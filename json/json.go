// Package json encodes and decodes the JSON shapes exchanged with a chat
// backend: the request body, the payload of each stream frame, and the
// AG-UI representation of lifecycle events.
package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/streamchat"
)

// requestDTO is the body POSTed to the streaming endpoint.
type requestDTO struct {
	Messages []messageDTO `json:"messages"`
	Model    string       `json:"model,omitempty"`
}

// messageDTO is the JSON representation of a chat Message. Timestamp is in
// Unix milliseconds and omitted when unknown.
type messageDTO struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// MarshalRequest serializes history into the request body. model is
// omitted when empty.
func MarshalRequest(history []streamchat.Message, model string) ([]byte, error) {
	req := requestDTO{
		Messages: make([]messageDTO, len(history)),
		Model:    model,
	}
	for i, msg := range history {
		dto := messageDTO{Role: string(msg.Role), Content: msg.Content}
		if !msg.Timestamp.IsZero() {
			ms := msg.Timestamp.UnixMilli()
			dto.Timestamp = &ms
		}
		req.Messages[i] = dto
	}
	return json.Marshal(req)
}

// UnmarshalRequest deserializes a request body into its history and model.
func UnmarshalRequest(data []byte) ([]streamchat.Message, string, error) {
	var req requestDTO
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, "", fmt.Errorf("unmarshal request: %w", err)
	}
	history := make([]streamchat.Message, len(req.Messages))
	for i, dto := range req.Messages {
		msg := streamchat.Message{Role: streamchat.Role(dto.Role), Content: dto.Content}
		if dto.Timestamp != nil {
			msg.Timestamp = time.UnixMilli(*dto.Timestamp)
		}
		history[i] = msg
	}
	return history, req.Model, nil
}

package streamchat

import "github.com/google/uuid"

// NewMessageID returns a fresh identifier for an assistant message. IDs are
// UUIDv7 values, so they sort by creation time and are never reused.
func NewMessageID() string {
	return "msg_" + uuid.Must(uuid.NewV7()).String()
}

package streamchat

import "time"

// Message is one entry of a chat history. Messages are values: once appended
// to a history they are never modified, and the history itself only grows.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time // zero when unknown
}

// UserMessage returns a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantMessage returns an assistant message stamped with the current time.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// Append returns a new history with msgs added after history. The backing
// array of history is never written to, so slices handed out earlier keep
// observing the same messages.
func Append(history []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(history)+len(msgs))
	out = append(out, history...)
	return append(out, msgs...)
}

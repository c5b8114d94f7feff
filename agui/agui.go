// Package agui implements streamchat.Client over HTTP.
//
// A session POSTs the chat history to a streaming endpoint and reads back a
// line-framed event stream (see package sse) whose payloads are wire events
// (see package json). The wire events are folded through a
// streamchat.Mapper into AG-UI text message lifecycle events.
package agui

// DefaultURL is the endpoint used when New is given an empty URL.
const DefaultURL = "http://localhost:4000/api/chat/stream"

// httpStatusError is the transport-failure text for a non-success status.
const httpStatusError = "HTTP error! status: %d"

// successful reports whether status is in the 2xx range.
func successful(status int) bool {
	return status >= 200 && status <= 299
}

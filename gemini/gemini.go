// Package gemini implements [streamchat.Generator] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating chat history into
// Gemini contents and forwarding the text parts of each streamed response.
package gemini

const (
	defaultModel     = "gemini-3.1-pro-preview"
	defaultMaxTokens = 65536
)

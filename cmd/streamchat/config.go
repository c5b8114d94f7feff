package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/streamchat/server"
	"github.com/fwojciec/streamchat/ws"
	"github.com/rs/zerolog"
)

// Environment variables read at startup.
const (
	envURL          = "STREAMCHAT_URL"
	envAPIKey       = "STREAMCHAT_API_KEY"
	envLogLevel     = "STREAMCHAT_LOG_LEVEL"
	envAnthropicKey = "ANTHROPIC_API_KEY"
	envGeminiKey    = "GEMINI_API_KEY"
	envOpenAIKey    = "OPENAI_API_KEY"
)

// config holds settings shared by every command. Fields start from the
// environment and are overwritten by flags.
type config struct {
	url      string
	apiKey   string
	model    string
	logLevel string

	anthropicKey string
	geminiKey    string
	openaiKey    string
}

// configFromEnv reads the environment through getenv.
func configFromEnv(getenv func(string) string) config {
	return config{
		url:          getenv(envURL),
		apiKey:       getenv(envAPIKey),
		logLevel:     getenv(envLogLevel),
		anthropicKey: getenv(envAnthropicKey),
		geminiKey:    getenv(envGeminiKey),
		openaiKey:    getenv(envOpenAIKey),
	}
}

// newLogger returns a logger writing to w at the named level. An empty
// level means info.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// consoleLogger logs human-readable lines to w.
func consoleLogger(w io.Writer, level string) (zerolog.Logger, error) {
	return newLogger(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}, level)
}

// fileLogger logs JSON lines to streamchat/streamchat.log under the user
// cache directory, keeping the terminal free for the TUI.
func fileLogger(level string) (zerolog.Logger, io.Closer, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("cache dir: %w", err)
	}
	dir = filepath.Join(dir, "streamchat")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "streamchat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := newLogger(f, level)
	if err != nil {
		f.Close()
		return zerolog.Nop(), nil, err
	}
	return logger, f, nil
}

// socketURL derives the WebSocket endpoint from a chat stream URL. An http
// URL ending in the stream path maps to the socket path on the same host.
func socketURL(streamURL string) (string, error) {
	if streamURL == "" {
		return ws.DefaultURL, nil
	}
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return u.String(), nil
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if base, ok := strings.CutSuffix(u.Path, server.StreamPath); ok {
		u.Path = base + server.SocketPath
	}
	return u.String(), nil
}

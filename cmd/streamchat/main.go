// Command streamchat is a terminal client and reference backend for the chat
// streaming protocol.
//
// Usage:
//
//	streamchat chat  [flags]            interactive TUI
//	streamchat send  [flags] MESSAGE    one-shot request, prints the reply
//	streamchat serve [flags]            reference backend
//
// Settings are read from a .env file, then the environment, then flags:
//
//	STREAMCHAT_URL        chat stream endpoint (-url)
//	STREAMCHAT_API_KEY    bearer credential (-api-key)
//	STREAMCHAT_LOG_LEVEL  zerolog level (-log-level)
//	ANTHROPIC_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY  serve backends
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "streamchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Variables already in the environment win over the file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := configFromEnv(os.Getenv)
	return newRootCmd(&cfg).ExecuteContext(ctx)
}

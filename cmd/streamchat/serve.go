package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/anthropic"
	"github.com/fwojciec/streamchat/gemini"
	"github.com/fwojciec/streamchat/openai"
	"github.com/fwojciec/streamchat/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultAddr = "localhost:4000"

type serveOptions struct {
	addr      string
	backend   string
	keepAlive time.Duration
	delay     time.Duration
}

func newServeCmd(cfg *config) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference chat backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := consoleLogger(cmd.ErrOrStderr(), cfg.logLevel)
			if err != nil {
				return err
			}
			gen, err := resolveGenerator(cmd.Context(), opts, cfg, logger)
			if err != nil {
				return err
			}

			srv := server.New(gen,
				server.WithLogger(logger),
				server.WithAPIKey(cfg.apiKey),
				server.WithKeepAlive(opts.keepAlive),
			)
			logger.Info().Str("backend", opts.backend).Msg("backend ready")
			return srv.ListenAndServe(cmd.Context(), opts.addr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", defaultAddr, "Listen address")
	flags.StringVar(&opts.backend, "backend", "echo", "Reply generator: echo, anthropic, gemini, openai")
	flags.DurationVar(&opts.keepAlive, "keep-alive", server.DefaultKeepAlive, "Keep-alive comment interval (0 disables)")
	flags.DurationVar(&opts.delay, "echo-delay", 50*time.Millisecond, "Pause between echo fragments")
	return cmd
}

// resolveGenerator constructs the backend named by opts.backend. Provider
// keys come from cfg, which is filled from the environment in main.
func resolveGenerator(ctx context.Context, opts serveOptions, cfg *config, logger zerolog.Logger) (streamchat.Generator, error) {
	switch opts.backend {
	case "echo":
		return &server.Echo{Delay: opts.delay}, nil
	case "anthropic":
		if cfg.anthropicKey == "" {
			return nil, fmt.Errorf("%s not set", envAnthropicKey)
		}
		aopts := []anthropic.Option{anthropic.WithLogger(logger)}
		if cfg.model != "" {
			aopts = append(aopts, anthropic.WithModel(cfg.model))
		}
		return anthropic.New(cfg.anthropicKey, aopts...), nil
	case "gemini":
		if cfg.geminiKey == "" {
			return nil, fmt.Errorf("%s not set", envGeminiKey)
		}
		gopts := []gemini.Option{gemini.WithLogger(logger)}
		if cfg.model != "" {
			gopts = append(gopts, gemini.WithModel(cfg.model))
		}
		return gemini.New(ctx, cfg.geminiKey, gopts...)
	case "openai":
		if cfg.openaiKey == "" {
			return nil, fmt.Errorf("%s not set", envOpenAIKey)
		}
		oopts := []openai.Option{openai.WithLogger(logger)}
		if cfg.model != "" {
			oopts = append(oopts, openai.WithModel(cfg.model))
		}
		return openai.New(cfg.openaiKey, oopts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be echo, anthropic, gemini or openai", opts.backend)
	}
}

package main

import (
	"fmt"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/agui"
	bt "github.com/fwojciec/streamchat/bubbletea"
	"github.com/spf13/cobra"
)

func newChatCmd(cfg *config) *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := fileLogger(cfg.logLevel)
			if err != nil {
				return err
			}
			defer closer.Close()

			client := agui.New(cfg.url,
				agui.WithAPIKey(cfg.apiKey),
				agui.WithModel(cfg.model),
				agui.WithLogger(logger),
			)

			var history []streamchat.Message
			if system != "" {
				history = append(history, streamchat.Message{Role: streamchat.RoleSystem, Content: system})
			}

			logger.Info().Str("url", cfg.url).Msg("chat started")
			if err := bt.Run(cmd.Context(), bt.New(client, history, streamchat.DefaultTheme())); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt prepended to the conversation")
	return cmd
}

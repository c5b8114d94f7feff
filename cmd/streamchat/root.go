package main

import "github.com/spf13/cobra"

func newRootCmd(cfg *config) *cobra.Command {
	root := &cobra.Command{
		Use:   "streamchat",
		Short: "Streaming chat client and reference backend",
		Long: `streamchat talks to a chat backend that streams its replies as a
line-framed event stream, and can serve such a backend itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.url, "url", cfg.url, "Chat stream endpoint (env "+envURL+")")
	flags.StringVar(&cfg.apiKey, "api-key", cfg.apiKey, "Bearer credential (env "+envAPIKey+")")
	flags.StringVar(&cfg.model, "model", cfg.model, "Model hint sent with each request")
	flags.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "Log level: debug, info, warn, error (env "+envLogLevel+")")

	root.AddCommand(newChatCmd(cfg), newSendCmd(cfg), newServeCmd(cfg))
	return root
}

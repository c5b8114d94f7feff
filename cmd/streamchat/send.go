package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/agui"
	scjson "github.com/fwojciec/streamchat/json"
	"github.com/fwojciec/streamchat/ws"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errConnectionLost is returned when a socket closes before the reply ends.
var errConnectionLost = errors.New("connection closed before the reply ended")

type sendOptions struct {
	system    string
	json      bool
	subscribe bool
	socket    bool
	wire      bool
}

func newSendCmd(cfg *config) *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send one message and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := consoleLogger(cmd.ErrOrStderr(), cfg.logLevel)
			if err != nil {
				return err
			}

			var history []streamchat.Message
			if opts.system != "" {
				history = append(history, streamchat.Message{Role: streamchat.RoleSystem, Content: opts.system})
			}
			history = append(history, streamchat.UserMessage(strings.Join(args, " ")))

			out := printer{w: cmd.OutOrStdout(), json: opts.json}
			ctx := cmd.Context()
			switch {
			case opts.socket:
				return sendOverSocket(ctx, cfg, logger, history, out)
			case opts.wire:
				return sendWire(ctx, cfg, logger, history, cmd.OutOrStdout())
			case opts.subscribe:
				return sendSubscribed(ctx, cfg, logger, history, cmd.OutOrStdout())
			}
			return sendStream(ctx, cfg, logger, history, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.system, "system", "", "System prompt sent before the message")
	flags.BoolVar(&opts.json, "json", false, "Print AG-UI JSON events, one per line")
	flags.BoolVar(&opts.subscribe, "subscribe", false, "Consume the reply through subscriber callbacks")
	flags.BoolVar(&opts.socket, "ws", false, "Use the WebSocket transport")
	flags.BoolVar(&opts.wire, "wire", false, "Print the raw wire events instead of lifecycle events")
	cmd.MarkFlagsMutuallyExclusive("ws", "wire", "subscribe")
	cmd.MarkFlagsMutuallyExclusive("json", "wire")
	cmd.MarkFlagsMutuallyExclusive("json", "subscribe")
	return cmd
}

func newClient(cfg *config, logger zerolog.Logger) *agui.Client {
	return agui.New(cfg.url,
		agui.WithAPIKey(cfg.apiKey),
		agui.WithModel(cfg.model),
		agui.WithLogger(logger),
	)
}

// printer writes lifecycle events either as plain text or as AG-UI JSON.
type printer struct {
	w    io.Writer
	json bool
}

func (p printer) print(evt streamchat.Event) error {
	if p.json {
		data, err := scjson.MarshalEvent(evt)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", data)
		return err
	}
	switch e := evt.(type) {
	case streamchat.EventContentDelta:
		_, err := io.WriteString(p.w, e.Delta)
		return err
	case streamchat.EventEnd:
		_, err := fmt.Fprintln(p.w)
		return err
	}
	return nil
}

// emit prints evt and turns an error event into the returned error.
func (p printer) emit(evt streamchat.Event) error {
	if err := p.print(evt); err != nil {
		return err
	}
	if e, ok := evt.(streamchat.EventError); ok {
		return e
	}
	return nil
}

func sendStream(ctx context.Context, cfg *config, logger zerolog.Logger, history []streamchat.Message, out printer) error {
	s, err := newClient(cfg, logger).Open(ctx, history)
	if err != nil {
		return err
	}
	defer s.Close()

	for evt := range streamchat.All(s) {
		if err := out.emit(evt); err != nil {
			return err
		}
	}
	if s.State() == streamchat.StreamStateClosed {
		return ctx.Err()
	}
	return nil
}

func sendSubscribed(ctx context.Context, cfg *config, logger zerolog.Logger, history []streamchat.Message, w io.Writer) error {
	var failed error
	err := streamchat.Run(ctx, newClient(cfg, logger), history, streamchat.Subscriber{
		OnStart: func(messageID string) {
			logger.Debug().Str("message_id", messageID).Msg("message started")
		},
		OnDelta: func(delta string) {
			io.WriteString(w, delta)
		},
		OnEnd: func(messageID, fullText string) {
			fmt.Fprintln(w)
			logger.Debug().Str("message_id", messageID).Int("length", len(fullText)).Msg("message complete")
		},
		OnError: func(err error) { failed = err },
	})
	if err != nil {
		return err
	}
	return failed
}

func sendWire(ctx context.Context, cfg *config, logger zerolog.Logger, history []streamchat.Message, w io.Writer) error {
	s, err := newClient(cfg, logger).OpenWire(ctx, history)
	if err != nil {
		return err
	}
	defer s.Close()

	for evt := range s.All() {
		data, err := scjson.MarshalWireEvent(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
		if e, ok := evt.(streamchat.WireError); ok {
			return errors.New(e.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Err()
}

func sendOverSocket(ctx context.Context, cfg *config, logger zerolog.Logger, history []streamchat.Message, out printer) error {
	u, err := socketURL(cfg.url)
	if err != nil {
		return err
	}
	conn, err := ws.Dial(ctx, u, ws.WithAPIKey(cfg.apiKey), ws.WithLogger(logger))
	if err != nil {
		return err
	}
	defer conn.Close()
	// Unblocks the listener before Close waits for the read loop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan streamchat.Event, 64)
	conn.OnEvent(func(evt streamchat.Event) {
		select {
		case events <- evt:
		case <-ctx.Done():
		}
	})
	if err := conn.SendChat(history); err != nil {
		return err
	}

	for {
		select {
		case evt := <-events:
			if err := out.emit(evt); err != nil || streamchat.Terminal(evt) {
				return err
			}
		case <-conn.Done():
			return drain(events, out)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain prints events that arrived before the connection closed.
func drain(events <-chan streamchat.Event, out printer) error {
	for {
		select {
		case evt := <-events:
			if err := out.emit(evt); err != nil || streamchat.Terminal(evt) {
				return err
			}
		default:
			return errConnectionLost
		}
	}
}

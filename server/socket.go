package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/streamchat"
	"github.com/fwojciec/streamchat/json"
	"github.com/fwojciec/streamchat/ws"
	"github.com/gorilla/websocket"
)

// socketWriteWait bounds each write to a socket client.
const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// socketConn serializes writes to one socket client.
type socketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *socketConn) send(evt streamchat.Event) error {
	data, err := json.MarshalEvent(evt)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	wc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &socketConn{conn: wc}
	defer wc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, data, err := wc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		msg := ws.Message{Raw: data}
		var head struct {
			Type string `json:"type"`
		}
		if err := msg.Decode(&head); err != nil || head.Type != ws.EventChat {
			s.logger.Debug().Str("type", head.Type).Msg("ignoring socket message")
			continue
		}

		history, _, err := json.UnmarshalRequest(data)
		if err == nil {
			err = streamchat.Validate(history)
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("rejecting chat request")
			if err := conn.send(streamchat.EventError{Message: err.Error()}); err != nil {
				s.logger.Debug().Err(err).Msg("client went away")
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.chatOverSocket(ctx, conn, history)
		}()
	}
}

// chatOverSocket streams one reply as lifecycle events.
func (s *Server) chatOverSocket(ctx context.Context, conn *socketConn, history []streamchat.Message) {
	m := streamchat.NewMapper(streamchat.NewMessageID())
	logger := s.logger.With().Str("message_id", m.MessageID()).Logger()

	if err := conn.send(m.Open()); err != nil {
		logger.Debug().Err(err).Msg("client went away")
		return
	}
	err := s.gen.Generate(ctx, history, func(text string) error {
		if evt := m.Feed(streamchat.WireChunk{Content: text}); evt != nil {
			return conn.send(evt)
		}
		return nil
	})

	var final streamchat.Event
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		logger.Warn().Err(err).Msg("generation failed")
		final = m.Fail(err)
	default:
		final = m.Feed(streamchat.WireDone{})
	}
	if err := conn.send(final); err != nil {
		logger.Debug().Err(err).Msg("client went away")
	}
}

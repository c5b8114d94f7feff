// Package ws implements the WebSocket transport for chat events.
//
// Messages are JSON objects whose "type" field names the event; the rest of
// the object is its payload. Listeners are registered per connection with On
// and removed with Off, and all of them are dropped when the connection
// closes, after a final "close" event.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/streamchat"
	scjson "github.com/fwojciec/streamchat/json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultURL is the socket endpoint used when Dial is given an empty URL.
const DefaultURL = "ws://localhost:4000/socket"

const (
	// EventChat is the client request that starts a streamed reply.
	EventChat = "chat"
	// EventClose is delivered to listeners once the connection is gone.
	EventClose = "close"
)

// Timeouts holds the keep-alive settings of a connection.
type Timeouts struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts are used unless WithTimeouts is given.
var DefaultTimeouts = Timeouts{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// Message is one event received over the socket.
type Message struct {
	Type string
	Raw  json.RawMessage // the whole object, type field included
}

// Decode unmarshals the message into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

// Listener receives messages of the type it was registered for. Listeners
// run on the connection's read goroutine and must not block.
type Listener func(Message)

// Subscription identifies registered listeners so they can be removed.
type Subscription struct {
	conn *Conn
	keys []listenerKey
}

type listenerKey struct {
	event string
	id    uint64
}

// Off removes the listeners of s. It is safe to call more than once.
func (s *Subscription) Off() {
	s.conn.Off(s)
}

// Conn is a client WebSocket connection.
type Conn struct {
	conn     *websocket.Conn
	logger   zerolog.Logger
	timeouts Timeouts

	writeMu sync.Mutex

	mu        sync.Mutex
	listeners map[string]map[uint64]Listener
	nextID    uint64
	closed    bool

	// dispatching is set while the read goroutine runs listeners.
	dispatching atomic.Bool

	done chan struct{}
}

// Option configures a [Conn].
type Option func(*dialConfig)

type dialConfig struct {
	apiKey   string
	logger   zerolog.Logger
	timeouts Timeouts
	dialer   *websocket.Dialer
}

// WithAPIKey sends key as a bearer credential during the handshake.
func WithAPIKey(key string) Option {
	return func(c *dialConfig) { c.apiKey = key }
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *dialConfig) { c.logger = logger }
}

// WithTimeouts overrides DefaultTimeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *dialConfig) { c.timeouts = t }
}

// Dial connects to url. An empty url selects [DefaultURL].
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	if url == "" {
		url = DefaultURL
	}
	cfg := dialConfig{
		logger:   zerolog.Nop(),
		timeouts: DefaultTimeouts,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(&cfg)
	}

	header := http.Header{}
	if cfg.apiKey != "" {
		header.Set("Authorization", "Bearer "+cfg.apiKey)
	}
	wc, _, err := cfg.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("ws: dial: %w", err)
	}

	c := &Conn{
		conn:      wc,
		logger:    cfg.logger,
		timeouts:  cfg.timeouts,
		listeners: make(map[string]map[uint64]Listener),
		done:      make(chan struct{}),
	}
	c.logger.Debug().Str("url", url).Msg("websocket connected")
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// On registers fn for messages of the given type.
func (c *Conn) On(event string, fn Listener) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Subscription{conn: c, keys: []listenerKey{c.add(event, fn)}}
}

// OnEvent registers fn for the AG-UI lifecycle events. Payloads that do not
// decode are logged and dropped.
func (c *Conn) OnEvent(fn func(streamchat.Event)) *Subscription {
	l := func(m Message) {
		evt, err := scjson.UnmarshalEvent(m.Raw)
		if err != nil {
			c.logger.Warn().Err(err).Str("type", m.Type).Msg("dropping malformed event")
			return
		}
		fn(evt)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &Subscription{conn: c}
	for _, kind := range []streamchat.EventKind{
		streamchat.KindStart,
		streamchat.KindContentDelta,
		streamchat.KindEnd,
		streamchat.KindError,
	} {
		sub.keys = append(sub.keys, c.add(string(kind), l))
	}
	return sub
}

func (c *Conn) add(event string, fn Listener) listenerKey {
	c.nextID++
	set, ok := c.listeners[event]
	if !ok {
		set = make(map[uint64]Listener)
		c.listeners[event] = set
	}
	set[c.nextID] = fn
	return listenerKey{event: event, id: c.nextID}
}

// Off removes the listeners registered by sub.
func (c *Conn) Off(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range sub.keys {
		if set, ok := c.listeners[k.event]; ok {
			delete(set, k.id)
			if len(set) == 0 {
				delete(c.listeners, k.event)
			}
		}
	}
	sub.keys = nil
}

// Send writes {"type": event, ...payload}. A "type" key in payload is
// overridden. It returns streamchat.ErrNotConnected once the connection is
// closed.
func (c *Conn) Send(event string, payload map[string]any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("ws: send %s: %w", event, streamchat.ErrNotConnected)
	}

	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = event
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ws: %w", err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: send %s: %w", event, err)
	}
	return nil
}

// SendChat asks the server to stream a reply to history.
func (c *Conn) SendChat(history []streamchat.Message) error {
	if err := streamchat.Validate(history); err != nil {
		return fmt.Errorf("ws: %w", err)
	}
	body, err := scjson.MarshalRequest(history, "")
	if err != nil {
		return fmt.Errorf("ws: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("ws: %w", err)
	}
	return c.Send(EventChat, payload)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Close sends a close frame and tears the connection down. Listeners receive
// a final "close" event before Close returns, except when Close is called
// while listeners are running: it then returns at once and the "close" event
// follows when they finish. Calling Close again is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.timeouts.WriteWait))
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("close frame not sent")
	}

	c.conn.Close()
	if c.dispatching.Load() {
		return nil
	}
	<-c.done
	return nil
}

// Done is closed once the read loop has exited and listeners were released.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) readLoop() {
	defer c.teardown()

	c.conn.SetReadDeadline(time.Now().Add(c.timeouts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timeouts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				c.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
			c.logger.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		c.emit(Message{Type: head.Type, Raw: data})
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.timeouts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeouts.WriteWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// emit calls the listeners for m.Type outside the lock so a listener may
// call On, Off or Send.
func (c *Conn) emit(m Message) {
	c.mu.Lock()
	set := c.listeners[m.Type]
	fns := make([]Listener, 0, len(set))
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, set[id])
	}
	c.mu.Unlock()

	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	for _, fn := range fns {
		fn(m)
	}
}

func (c *Conn) teardown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.Close()

	c.emit(Message{Type: EventClose, Raw: json.RawMessage(`{"type":"close"}`)})

	c.mu.Lock()
	c.listeners = make(map[string]map[uint64]Listener)
	c.mu.Unlock()
	close(c.done)
	c.logger.Debug().Msg("websocket disconnected")
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

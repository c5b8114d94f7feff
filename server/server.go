// Package server is a reference backend for the chat streaming protocol.
//
// It exposes a Generator over two transports: a POST endpoint that answers
// with a line-framed event stream of wire events, and a WebSocket endpoint
// that answers with AG-UI lifecycle events.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/streamchat"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Routes served by [Server].
const (
	StreamPath = "/api/chat/stream"
	SocketPath = "/socket"
	HealthPath = "/healthz"
)

// DefaultKeepAlive is the interval between keep-alive comments on an idle
// event stream.
const DefaultKeepAlive = 15 * time.Second

// Server serves chat sessions backed by a Generator.
type Server struct {
	gen       streamchat.Generator
	logger    zerolog.Logger
	apiKey    string
	keepAlive time.Duration
	router    *mux.Router
	http      *http.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request and session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAPIKey requires every chat request to carry key as a bearer credential.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithKeepAlive sets the keep-alive comment interval. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// New creates a [Server] for gen.
func New(gen streamchat.Generator, opts ...Option) *Server {
	s := &Server{
		gen:       gen,
		logger:    zerolog.Nop(),
		keepAlive: DefaultKeepAlive,
	}
	for _, o := range opts {
		o(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	chat := r.NewRoute().Subrouter()
	chat.Use(s.requireAuth)
	chat.HandleFunc(StreamPath, s.handleStream).Methods(http.MethodPost)
	chat.HandleFunc(SocketPath, s.handleSocket).Methods(http.MethodGet)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server listening")

	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging. It
// forwards Flush and Hijack so streaming and upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

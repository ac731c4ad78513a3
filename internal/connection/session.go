package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/relay-chat/internal/chat"
	"github.com/rickgao/relay-chat/internal/version"
)

// Session is one physical connection attempt to the relay.
type Session interface {
	// ID identifies the session in logs.
	ID() uuid.UUID

	// Send queues a text frame. Returns ErrNotConnected unless open.
	Send(payload []byte) error

	// Close requests an orderly shutdown. Closing twice is a no-op.
	Close(code int, reason string) error

	// IsOpen returns current connection state.
	IsOpen() bool
}

// SessionHandler receives raw session events. OnClose is delivered exactly
// once per session, and nothing is delivered after it.
type SessionHandler interface {
	OnOpen(s Session)
	OnMessage(s Session, raw []byte, receivedAt time.Time)
	OnError(s Session, err error)
	OnClose(s Session, code int, reason string)
}

// Dialer starts sessions. Dial must not block; the outcome is reported to
// the handler.
type Dialer interface {
	Dial(endpoint chat.Endpoint, handler SessionHandler) Session
}

// WebSocketDialer dials relay sessions with gorilla/websocket.
type WebSocketDialer struct {
	cfg    SessionConfig
	logger *slog.Logger
}

// NewDialer creates a WebSocket dialer.
func NewDialer(cfg SessionConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{cfg: cfg, logger: logger}
}

// Dial starts a session in the background and returns it immediately.
func (d *WebSocketDialer) Dial(endpoint chat.Endpoint, handler SessionHandler) Session {
	s := newSession(endpoint, d.cfg, handler, d.logger)
	go s.run()
	return s
}

// session implements the Session interface.
type session struct {
	id       uuid.UUID
	endpoint chat.Endpoint
	cfg      SessionConfig
	handler  SessionHandler
	logger   *slog.Logger

	ctx    context.Context // cancelled by Close to abort an in-flight dial
	cancel context.CancelFunc

	outbound chan []byte
	done     chan struct{}

	// State
	mu          sync.RWMutex
	conn        *websocket.Conn
	open        bool
	closed      bool // Close was called locally
	stale       bool
	localCode   int
	localReason string
	lastPingAt  time.Time

	closeOnce sync.Once

	// Serializes OnError against OnClose
	cbMu     sync.Mutex
	finished bool
}

func newSession(endpoint chat.Endpoint, cfg SessionConfig, handler SessionHandler, logger *slog.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	if cfg.SendBufferSize < 1 {
		cfg.SendBufferSize = 1
	}

	return &session{
		id:       id,
		endpoint: endpoint,
		cfg:      cfg,
		handler:  handler,
		logger:   logger.With("session", id),
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
	}
}

func (s *session) ID() uuid.UUID {
	return s.id
}

func (s *session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Send queues payload for the write loop without blocking.
func (s *session) Send(payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return ErrNotConnected
	}

	select {
	case s.outbound <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame with the given code and tears the socket down.
func (s *session) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.open = false
	s.localCode = code
	s.localReason = reason
	conn := s.conn
	s.mu.Unlock()

	// Abort a dial that has not finished yet
	s.cancel()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(s.cfg.WriteTimeout),
		)
		return conn.Close()
	}

	return nil
}

func (s *session) run() {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(s.ctx, s.endpoint.String(), header)
	if err != nil {
		if code, reason, local := s.localClose(); local {
			s.finish(code, reason)
			return
		}
		s.emitError(fmt.Errorf("dial %s: %w", s.endpoint, err))
		s.finish(websocket.CloseAbnormalClosure, err.Error())
		return
	}

	s.mu.Lock()
	if s.closed {
		code, reason := s.localCode, s.localReason
		s.mu.Unlock()
		conn.Close()
		s.finish(code, reason)
		return
	}
	s.conn = conn
	s.open = true
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	// Server pings: record and answer
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Answers to our own pings
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	s.logger.Debug("websocket connected", "url", s.endpoint)
	s.handler.OnOpen(s)

	go s.writeLoop(conn)
	go s.heartbeatLoop(conn)
	s.readLoop(conn)
}

// readLoop forwards frames to the handler until the connection ends.
func (s *session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			s.mu.Lock()
			s.open = false
			stale := s.stale
			s.mu.Unlock()

			if code, reason, local := s.localClose(); local {
				s.finish(code, reason)
				return
			}
			if stale {
				s.finish(websocket.CloseAbnormalClosure, ErrStaleConnection.Error())
				return
			}

			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.finish(ce.Code, ce.Text)
				return
			}

			s.emitError(err)
			s.finish(websocket.CloseAbnormalClosure, err.Error())
			return
		}

		s.handler.OnMessage(s, data, receivedAt)
	}
}

// writeLoop is the only writer of data frames.
func (s *session) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.outbound:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.emitError(fmt.Errorf("write frame: %w", err))
			}
		}
	}
}

// heartbeatLoop pings the relay and tears down stale connections.
func (s *session) heartbeatLoop(conn *websocket.Conn) {
	if s.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.Lock()
			lastPing := s.lastPingAt
			expired := s.cfg.PingTimeout > 0 && time.Since(lastPing) > s.cfg.PingTimeout
			if expired {
				s.stale = true
			}
			s.mu.Unlock()

			if expired {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				s.emitError(ErrStaleConnection)
				conn.Close()
				return
			}
		}
	}
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

// localClose returns the code passed to Close, if Close was called.
func (s *session) localClose() (code int, reason string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localCode, s.localReason, s.closed
}

// finish delivers OnClose once and stops the helper goroutines.
func (s *session) finish(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()

		s.mu.Lock()
		s.open = false
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}

		s.logger.Debug("websocket closed", "code", code, "reason", reason)

		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		s.finished = true
		s.handler.OnClose(s, code, reason)
	})
}

// emitError reports err unless OnClose has already been delivered.
func (s *session) emitError(err error) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.finished {
		s.logger.Debug("dropping error after close", "error", err)
		return
	}
	s.handler.OnError(s, err)
}

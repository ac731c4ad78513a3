package connection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/relay-chat/internal/chat"
	"github.com/rickgao/relay-chat/internal/eventloop"
)

// Manager owns the relay connection and its reconnection.
type Manager interface {
	// Start runs the event loop. Until Start, requests are queued.
	Start(ctx context.Context) error

	// Stop disconnects and shuts the event loop down.
	Stop(ctx context.Context) error

	// Connect validates the endpoint and identity and queues a new session.
	// A request made while a session is active is reported as a connection
	// error instead.
	Connect(endpoint, identity string) error

	// Disconnect closes the session for good and cancels pending retries.
	Disconnect()

	// SendMessage appends an own message and hands it to the live session.
	SendMessage(text string) error

	// Subscribe registers an additional event listener.
	Subscribe(l Listener)

	// State returns the current session state.
	State() State

	// Attempts returns the reconnect attempt counter.
	Attempts() int

	// Messages returns the message log in display order.
	Messages() []chat.Message

	// Stats returns current statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	dialer Dialer
	clock  Clock
	logger *slog.Logger

	loop *eventloop.Loop
	log  *chat.Log

	// Loop-owned state. Only touched from closures running on loop.
	live       Session
	endpoint   chat.Endpoint
	identity   chat.Identity
	state      State
	attempt    int
	lastErr    error
	retryTimer Timer
	retryToken uint64
	listeners  []Listener

	// Snapshot for readers outside the loop
	snapMu       sync.RWMutex
	snapState    State
	snapAttempts int

	// Counters
	sessionsDialed   atomic.Int64
	sessionsOpened   atomic.Int64
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	malformedFrames  atomic.Int64
	strayEvents      atomic.Int64
}

// NewManager creates a new lifecycle Manager.
func NewManager(cfg ManagerConfig, dialer Dialer, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	m := &manager{
		cfg:       cfg,
		dialer:    dialer,
		clock:     clock,
		logger:    logger,
		loop:      eventloop.New(cfg.EventBufferSize, logger),
		log:       chat.NewLog(),
		state:     Idle(),
		snapState: Idle(),
	}
	if cfg.Listener != nil {
		m.listeners = append(m.listeners, cfg.Listener)
	}
	return m
}

// Start begins processing events. Cancelling ctx disconnects the live
// session before the loop shuts down.
func (m *manager) Start(ctx context.Context) error {
	m.loop.Start(context.WithoutCancel(ctx))

	go func() {
		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, shutting down connection manager")
			m.shutdown()
		case <-m.loop.Done():
		}
	}()

	m.logger.Info("connection manager started",
		"max_attempts", m.cfg.Policy.MaxAttempts,
		"reconnect_interval", m.cfg.Policy.Interval,
	)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	m.shutdown()

	select {
	case <-m.loop.Done():
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
		return ctx.Err()
	}

	// The loop has exited, so its state is ours now. A session still active
	// here missed the queued disconnect.
	if m.state.Active() {
		m.handleDisconnect()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// shutdown queues the final disconnect ahead of closing the loop.
func (m *manager) shutdown() {
	m.loop.Post(m.handleDisconnect)
	m.loop.Stop()
}

// Connect validates at the manager boundary; nothing is dialled on error.
// Whether a session is already active is decided on the loop, after every
// earlier request, and reported through OnConnectionError.
func (m *manager) Connect(endpoint, identity string) error {
	ep, err := chat.ParseEndpoint(endpoint)
	if err != nil {
		return err
	}
	id, err := chat.ParseIdentity(identity)
	if err != nil {
		return err
	}
	if !m.loop.Post(func() { m.handleConnect(ep, id) }) {
		return ErrStopped
	}
	return nil
}

// Disconnect is asynchronous; the Closed status follows through listeners.
func (m *manager) Disconnect() {
	m.loop.Post(m.handleDisconnect)
}

// SendMessage rejects blank text and sends outside Open. The state is
// checked again on the loop, so a message is never appended unless Open.
func (m *manager) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if m.State().Kind != KindOpen {
		return ErrNotOpen
	}
	if !m.loop.Post(func() { m.handleSend(text) }) {
		return ErrStopped
	}
	return nil
}

func (m *manager) Subscribe(l Listener) {
	m.loop.Post(func() { m.listeners = append(m.listeners, l) })
}

func (m *manager) State() State {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapState
}

func (m *manager) Attempts() int {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapAttempts
}

func (m *manager) Messages() []chat.Message {
	return m.log.Snapshot()
}

func (m *manager) Stats() ManagerStats {
	m.snapMu.RLock()
	state, attempts := m.snapState, m.snapAttempts
	m.snapMu.RUnlock()

	return ManagerStats{
		State:            state,
		Attempts:         attempts,
		SessionsDialed:   m.sessionsDialed.Load(),
		SessionsOpened:   m.sessionsOpened.Load(),
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		MalformedFrames:  m.malformedFrames.Load(),
		StrayEvents:      m.strayEvents.Load(),
	}
}

// -----------------------------------------------------------------------------
// Transitions (run on the event loop)
// -----------------------------------------------------------------------------

func (m *manager) handleConnect(ep chat.Endpoint, id chat.Identity) {
	if m.state.Active() {
		m.publishError(ErrAlreadyActive.Error())
		return
	}

	m.endpoint = ep
	m.identity = id
	m.lastErr = nil
	m.setAttempt(0)
	m.setState(Connecting())
	m.dial()
}

func (m *manager) handleOpen(s Session) {
	if !m.isLive(s, "open") {
		return
	}

	m.cancelRetry()
	m.lastErr = nil
	m.setAttempt(0)
	m.sessionsOpened.Add(1)
	m.setState(Open())
}

func (m *manager) handleMessage(s Session, raw []byte, receivedAt time.Time) {
	if !m.isLive(s, "message") {
		return
	}

	frame, err := chat.DecodeFrame(raw)
	if err != nil {
		m.malformedFrames.Add(1)
		m.logger.Warn("dropping malformed frame",
			"session", s.ID(),
			"size", len(raw),
			"error", err,
		)
		m.publishError(fmt.Sprintf("dropped inbound frame: %v", err))
		return
	}

	msg := chat.NewRemoteMessage(frame, receivedAt)
	m.log.Append(msg)
	m.messagesReceived.Add(1)

	for _, l := range m.listeners {
		l.OnMessage(msg)
	}
}

// handleError only records the error; the close that follows decides.
func (m *manager) handleError(s Session, err error) {
	if !m.isLive(s, "error") {
		return
	}

	m.lastErr = err
	m.logger.Warn("transport error",
		"session", s.ID(),
		"state", m.state,
		"error", err,
	)
}

func (m *manager) handleClose(s Session, code int, reason string) {
	if !m.isLive(s, "close") {
		return
	}

	m.live = nil
	cause := closeCause(code, reason, m.lastErr)
	m.lastErr = nil

	m.logger.Info("session closed",
		"session", s.ID(),
		"code", code,
		"reason", reason,
		"attempt", m.attempt,
	)

	decision := m.cfg.Policy.Decide(m.attempt, code)
	if decision.Retry {
		m.setAttempt(m.attempt + 1)
		m.setState(Reconnecting(m.attempt, m.cfg.Policy.MaxAttempts))
		m.scheduleRetry(decision.Delay)
		return
	}

	if IsCleanClose(code) {
		m.setState(Closed())
	} else {
		m.setState(Failed(fmt.Sprintf("%v: %s", ErrReconnectExhausted, cause)))
	}
	m.notifyDisconnect()
}

func (m *manager) handleRetry(token uint64) {
	if token != m.retryToken || m.state.Kind != KindReconnecting {
		m.logger.Debug("ignoring cancelled reconnect")
		return
	}

	m.retryTimer = nil
	m.logger.Info("attempting reconnection",
		"attempt", m.attempt,
		"max_attempts", m.cfg.Policy.MaxAttempts,
		"url", m.endpoint,
	)
	m.dial()
}

func (m *manager) handleDisconnect() {
	if !m.state.Active() {
		return
	}

	m.setAttempt(m.cfg.Policy.MaxAttempts)
	m.cancelRetry()

	if s := m.live; s != nil {
		m.live = nil
		if err := s.Close(websocket.CloseNormalClosure, "client disconnect"); err != nil {
			m.logger.Debug("close failed", "session", s.ID(), "error", err)
		}
	}

	m.setState(Closed())
	m.notifyDisconnect()
}

func (m *manager) handleSend(text string) {
	if m.state.Kind != KindOpen || m.live == nil {
		m.publishError(fmt.Sprintf("message not sent: %v", ErrNotOpen))
		return
	}

	msg := chat.NewOwnMessage(m.identity, text, m.clock.Now())
	m.log.Append(msg)
	for _, l := range m.listeners {
		l.OnMessage(msg)
	}

	payload, err := chat.Frame{User: m.identity.String(), Message: text}.Encode()
	if err == nil {
		err = m.live.Send(payload)
	}
	if err != nil {
		m.logger.Warn("send failed", "session", m.live.ID(), "error", err)
		m.publishError(fmt.Sprintf("message may not have been delivered: %v", err))
		return
	}
	m.messagesSent.Add(1)
}

// -----------------------------------------------------------------------------
// Helpers (run on the event loop)
// -----------------------------------------------------------------------------

func (m *manager) dial() {
	m.live = m.dialer.Dial(m.endpoint, sessionEvents{m})
	m.sessionsDialed.Add(1)
	m.logger.Debug("dialing relay", "session", m.live.ID(), "url", m.endpoint)
}

// isLive compares by identity; events of superseded sessions are dropped.
func (m *manager) isLive(s Session, event string) bool {
	if m.live != nil && s == m.live {
		return true
	}
	m.strayEvents.Add(1)
	m.logger.Debug("ignoring event from superseded session",
		"session", s.ID(),
		"event", event,
	)
	return false
}

func (m *manager) scheduleRetry(delay time.Duration) {
	m.retryToken++
	token := m.retryToken
	m.retryTimer = m.clock.AfterFunc(delay, func() {
		m.loop.Post(func() { m.handleRetry(token) })
	})

	m.logger.Info("reconnect scheduled",
		"attempt", m.attempt,
		"max_attempts", m.cfg.Policy.MaxAttempts,
		"delay", delay,
	)
}

// cancelRetry stops the pending timer and invalidates a firing already queued.
func (m *manager) cancelRetry() {
	m.retryToken++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *manager) setState(s State) {
	prev := m.state
	m.state = s

	m.snapMu.Lock()
	m.snapState = s
	m.snapMu.Unlock()

	m.logger.Info("session state changed", "from", prev, "to", s)
	for _, l := range m.listeners {
		l.OnStatusChange(s)
	}
}

func (m *manager) setAttempt(n int) {
	m.attempt = n

	m.snapMu.Lock()
	m.snapAttempts = n
	m.snapMu.Unlock()
}

func (m *manager) publishError(message string) {
	for _, l := range m.listeners {
		l.OnConnectionError(message)
	}
}

func (m *manager) notifyDisconnect() {
	if m.cfg.OnDisconnect != nil {
		m.cfg.OnDisconnect()
	}
}

// closeCause describes a close for the Failed reason, annotated with the
// last transport error when there was one.
func closeCause(code int, reason string, lastErr error) string {
	cause := fmt.Sprintf("close %d", code)
	if reason != "" {
		cause += " (" + reason + ")"
	}
	if lastErr != nil {
		cause += ": " + lastErr.Error()
	}
	return cause
}

// sessionEvents posts session callbacks onto the manager's loop.
type sessionEvents struct {
	m *manager
}

func (e sessionEvents) OnOpen(s Session) {
	e.m.loop.Post(func() { e.m.handleOpen(s) })
}

func (e sessionEvents) OnMessage(s Session, raw []byte, receivedAt time.Time) {
	e.m.loop.Post(func() { e.m.handleMessage(s, raw, receivedAt) })
}

func (e sessionEvents) OnError(s Session, err error) {
	e.m.loop.Post(func() { e.m.handleError(s, err) })
}

func (e sessionEvents) OnClose(s Session, code int, reason string) {
	e.m.loop.Post(func() { e.m.handleClose(s, code, reason) })
}

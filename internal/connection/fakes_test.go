package connection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/relay-chat/internal/chat"
)

// fakeSession is a Session driven entirely by the test.
type fakeSession struct {
	id      uuid.UUID
	handler SessionHandler

	mu          sync.Mutex
	sent        []string
	closed      bool
	closeCode   int
	closeReason string
	sendErr     error
}

func (s *fakeSession) ID() uuid.UUID { return s.id }

func (s *fakeSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *fakeSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, string(payload))
	return nil
}

func (s *fakeSession) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeCode = code
	s.closeReason = reason
	return nil
}

func (s *fakeSession) sentFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Event helpers mimic what a real session reports.
func (s *fakeSession) open()                   { s.handler.OnOpen(s) }
func (s *fakeSession) receive(raw string)      { s.handler.OnMessage(s, []byte(raw), time.Now()) }
func (s *fakeSession) fail(err error)          { s.handler.OnError(s, err) }
func (s *fakeSession) drop(code int, r string) { s.handler.OnClose(s, code, r) }

// fakeDialer records every session it creates.
type fakeDialer struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	endpoints []chat.Endpoint
}

func (d *fakeDialer) Dial(endpoint chat.Endpoint, handler SessionHandler) Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSession{id: uuid.New(), handler: handler}
	d.sessions = append(d.sessions, s)
	d.endpoints = append(d.endpoints, endpoint)
	return s
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

func (d *fakeDialer) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[len(d.sessions)-1]
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// pending returns timers that have neither fired nor been stopped.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) all() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

// recorder is a Listener that keeps everything it is told. It is only
// written from the manager loop; read it after flush.
type recorder struct {
	states   []State
	messages []chat.Message
	errors   []string
}

func (r *recorder) OnStatusChange(s State)       { r.states = append(r.states, s) }
func (r *recorder) OnMessage(m chat.Message)     { r.messages = append(r.messages, m) }
func (r *recorder) OnConnectionError(msg string) { r.errors = append(r.errors, msg) }

package connection

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/relay-chat/internal/chat"
)

// channelListener forwards manager events to channels.
type channelListener struct {
	states   chan State
	messages chan chat.Message
}

func newChannelListener() *channelListener {
	return &channelListener{
		states:   make(chan State, 32),
		messages: make(chan chat.Message, 32),
	}
}

func (l *channelListener) OnStatusChange(s State)   { l.states <- s }
func (l *channelListener) OnMessage(m chat.Message) { l.messages <- m }
func (l *channelListener) OnConnectionError(string) {}

func (l *channelListener) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-l.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for state %v", want)
		}
	}
}

func (l *channelListener) waitMessage(t *testing.T) chat.Message {
	t.Helper()
	select {
	case m := <-l.messages:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return chat.Message{}
}

func startRelayManager(t *testing.T, policy Policy, l Listener) Manager {
	t.Helper()

	cfg := DefaultManagerConfig()
	cfg.Policy = policy
	cfg.Listener = l

	m := NewManager(cfg, NewDialer(testSessionConfig(), discardLogger()), discardLogger())
	m.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m
}

func TestManagerRelay_RoundTrip(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := chat.DecodeFrame(msg)
			if err != nil {
				return
			}
			reply, _ := chat.Frame{User: "bob", Message: "re: " + frame.Message}.Encode()
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	})
	defer server.Close()

	l := newChannelListener()
	m := startRelayManager(t, DefaultPolicy(), l)

	if err := m.Connect(wsURL(server).String(), "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	l.waitState(t, Open())

	if err := m.SendMessage("ping"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	own := l.waitMessage(t)
	if !own.IsOwn() || own.Text != "ping" {
		t.Errorf("first message = %+v, want own ping", own)
	}
	reply := l.waitMessage(t)
	if reply.IsOwn() || reply.Sender != "bob" || reply.Text != "re: ping" {
		t.Errorf("second message = %+v, want bob's reply", reply)
	}

	m.Disconnect()
	l.waitState(t, Closed())

	if n := len(m.Messages()); n != 2 {
		t.Errorf("message log has %d entries, want 2", n)
	}
}

func TestManagerRelay_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			// Drop the first connection without a close frame.
			return
		}
		readUntilError(conn)
	})
	defer server.Close()

	l := newChannelListener()
	m := startRelayManager(t, Policy{MaxAttempts: 3, Interval: 50 * time.Millisecond}, l)

	if err := m.Connect(wsURL(server).String(), "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	l.waitState(t, Open())
	l.waitState(t, Reconnecting(1, 3))
	l.waitState(t, Open())

	if m.Attempts() != 0 {
		t.Errorf("Attempts = %d after recovery, want 0", m.Attempts())
	}
	if got := m.Stats().SessionsOpened; got != 2 {
		t.Errorf("SessionsOpened = %d, want 2", got)
	}
}

func TestManagerRelay_CleanCloseByRelay(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "maintenance")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		readUntilError(conn)
	})
	defer server.Close()

	var disconnects atomic.Int32
	l := newChannelListener()

	cfg := DefaultManagerConfig()
	cfg.Listener = l
	cfg.OnDisconnect = func() { disconnects.Add(1) }
	m := NewManager(cfg, NewDialer(testSessionConfig(), discardLogger()), discardLogger())
	m.Start(context.Background())
	defer m.Stop(context.Background())

	if err := m.Connect(wsURL(server).String(), "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	l.waitState(t, Closed())

	if disconnects.Load() != 1 {
		t.Errorf("disconnect callback invoked %d times, want 1", disconnects.Load())
	}
	if m.Stats().SessionsDialed != 1 {
		t.Errorf("clean close triggered a reconnect")
	}
}

func TestManagerRelay_UnreachableRelayFails(t *testing.T) {
	server := mockWSServer(t, readUntilError)
	endpoint := wsURL(server).String()
	server.Close()

	l := newChannelListener()
	m := startRelayManager(t, Policy{MaxAttempts: 2, Interval: 20 * time.Millisecond}, l)

	if err := m.Connect(endpoint, "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-l.states:
			if s.Kind == KindOpen {
				t.Fatal("opened against a closed relay")
			}
			if s.Kind == KindFailed {
				if m.Stats().SessionsDialed != 3 {
					t.Errorf("SessionsDialed = %d, want 3", m.Stats().SessionsDialed)
				}
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for failed state")
		}
	}
}

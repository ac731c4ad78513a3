package connection

import (
	"errors"
	"time"

	"github.com/rickgao/relay-chat/internal/chat"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrNotOpen            = errors.New("session is not open")
	ErrAlreadyActive      = errors.New("session already active")
	ErrStaleConnection    = errors.New("connection stale (no ping)")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrEmptyMessage       = errors.New("message must not be blank")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrStopped            = errors.New("manager stopped")
)

// SessionConfig configures a single transport session.
type SessionConfig struct {
	HandshakeTimeout time.Duration // Max time for the WebSocket upgrade
	WriteTimeout     time.Duration // Write deadline for frames and control messages
	PingInterval     time.Duration // How often to send keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before the session is stale
	ReadLimit        int64         // Max inbound frame size in bytes
	SendBufferSize   int           // Outbound frame queue length
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		ReadLimit:        64 * 1024,
		SendBufferSize:   64,
	}
}

// ManagerConfig configures the lifecycle Manager.
type ManagerConfig struct {
	Policy          Policy   // Reconnection policy
	EventBufferSize int      // Initial event loop queue capacity
	Clock           Clock    // Timer source (nil = system clock)
	Listener        Listener // Initial event subscriber (optional)

	// OnDisconnect is invoked once when a session ends for good: explicit
	// Disconnect, clean close by the relay, or exhausted reconnection.
	OnDisconnect func()
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Policy:          DefaultPolicy(),
		EventBufferSize: 64,
	}
}

// ManagerStats provides statistics about the lifecycle manager.
type ManagerStats struct {
	State            State
	Attempts         int
	SessionsDialed   int64
	SessionsOpened   int64
	MessagesSent     int64
	MessagesReceived int64
	MalformedFrames  int64
	StrayEvents      int64
}

// Listener receives normalized manager events. Methods are called from the
// manager's event loop, one at a time.
type Listener interface {
	OnStatusChange(state State)
	OnMessage(msg chat.Message)
	OnConnectionError(message string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	StatusChange    func(State)
	Message         func(chat.Message)
	ConnectionError func(string)
}

func (f ListenerFuncs) OnStatusChange(state State) {
	if f.StatusChange != nil {
		f.StatusChange(state)
	}
}

func (f ListenerFuncs) OnMessage(msg chat.Message) {
	if f.Message != nil {
		f.Message(msg)
	}
}

func (f ListenerFuncs) OnConnectionError(message string) {
	if f.ConnectionError != nil {
		f.ConnectionError(message)
	}
}

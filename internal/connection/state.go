package connection

import "fmt"

// StateKind enumerates the lifecycle states.
type StateKind int

const (
	KindIdle StateKind = iota
	KindConnecting
	KindOpen
	KindReconnecting
	KindFailed
	KindClosed
)

// String returns the string representation of StateKind.
func (k StateKind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindConnecting:
		return "connecting"
	case KindOpen:
		return "open"
	case KindReconnecting:
		return "reconnecting"
	case KindFailed:
		return "failed"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is the manager's session state. Attempt and MaxAttempts are only
// set for Reconnecting, Reason only for Failed.
type State struct {
	Kind        StateKind
	Attempt     int
	MaxAttempts int
	Reason      string
}

func Idle() State       { return State{Kind: KindIdle} }
func Connecting() State { return State{Kind: KindConnecting} }
func Open() State       { return State{Kind: KindOpen} }
func Closed() State     { return State{Kind: KindClosed} }

// Reconnecting is the state while waiting for, or dialling, retry attempt.
func Reconnecting(attempt, maxAttempts int) State {
	return State{Kind: KindReconnecting, Attempt: attempt, MaxAttempts: maxAttempts}
}

// Failed is the terminal state after reconnection gave up.
func Failed(reason string) State {
	return State{Kind: KindFailed, Reason: reason}
}

// Active reports whether a session is being established or is open.
func (s State) Active() bool {
	switch s.Kind {
	case KindConnecting, KindOpen, KindReconnecting:
		return true
	}
	return false
}

// Terminal reports whether the session has ended for good.
func (s State) Terminal() bool {
	return s.Kind == KindFailed || s.Kind == KindClosed
}

func (s State) String() string {
	switch s.Kind {
	case KindReconnecting:
		return fmt.Sprintf("reconnecting(%d/%d)", s.Attempt, s.MaxAttempts)
	case KindFailed:
		return "failed: " + s.Reason
	default:
		return s.Kind.String()
	}
}

// Status is the text shown next to the connection indicator.
func (s State) Status() string {
	switch s.Kind {
	case KindConnecting:
		return "connecting..."
	case KindOpen:
		return "connected"
	case KindReconnecting:
		return fmt.Sprintf("attempting reconnect %d/%d", s.Attempt, s.MaxAttempts)
	case KindFailed:
		return "disconnected: " + s.Reason
	default:
		return "disconnected"
	}
}

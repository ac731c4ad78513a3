package connection

import (
	"time"

	"github.com/gorilla/websocket"
)

// Reconnection defaults. Fixed interval, no jitter, no backoff.
const (
	DefaultMaxAttempts       = 3
	DefaultReconnectInterval = 3 * time.Second
)

// Policy decides whether a closed session should be replaced.
type Policy struct {
	MaxAttempts int           // Retries allowed between successful opens
	Interval    time.Duration // Delay before each retry
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Retry bool
	Delay time.Duration // Zero when Retry is false
}

// DefaultPolicy returns the 3 attempts / 3 seconds policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultReconnectInterval,
	}
}

// Decide gives up on a clean close or once attempt reaches MaxAttempts,
// and otherwise retries after Interval.
func (p Policy) Decide(attempt int, closeCode int) Decision {
	if IsCleanClose(closeCode) || attempt >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.Interval}
}

// IsCleanClose reports whether code is the normal-closure code.
func IsCleanClose(code int) bool {
	return code == websocket.CloseNormalClosure
}

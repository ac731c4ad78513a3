package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrInvalidEndpoint = errors.New("invalid relay endpoint")
	ErrEmptyIdentity   = errors.New("identity must not be empty")
	ErrMalformedFrame  = errors.New("malformed frame")
)

// Identity is the display name a user connects with.
type Identity string

// ParseIdentity trims the name and rejects blank values.
func ParseIdentity(name string) (Identity, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyIdentity
	}
	return Identity(trimmed), nil
}

// String returns the display name.
func (id Identity) String() string {
	return string(id)
}

// Origin tells whether a message was written locally or received from the relay.
type Origin int

const (
	OriginOwn Origin = iota
	OriginRemote
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	switch o {
	case OriginOwn:
		return "own"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Message is a single chat line as displayed to the user.
type Message struct {
	ID         uuid.UUID // Client-side identifier
	Sender     Identity  // Author as claimed by the frame
	Text       string    // Message body
	ReceivedAt time.Time // When the message entered the log
	Origin     Origin    // Own or Remote
}

// NewOwnMessage builds a message written by the local user.
func NewOwnMessage(sender Identity, text string, at time.Time) Message {
	return Message{
		ID:         uuid.New(),
		Sender:     sender,
		Text:       text,
		ReceivedAt: at,
		Origin:     OriginOwn,
	}
}

// NewRemoteMessage builds a message received from the relay.
func NewRemoteMessage(frame Frame, at time.Time) Message {
	return Message{
		ID:         uuid.New(),
		Sender:     Identity(frame.User),
		Text:       frame.Message,
		ReceivedAt: at,
		Origin:     OriginRemote,
	}
}

// IsOwn reports whether the message was written by the local user.
func (m Message) IsOwn() bool {
	return m.Origin == OriginOwn
}

// Clock formats the receive time as local wall-clock time.
func (m Message) Clock() string {
	return m.ReceivedAt.Format("15:04:05")
}

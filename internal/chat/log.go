package chat

import "sync"

// Log is the append-only, insertion-ordered message list.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a message at the end of the log.
func (l *Log) Append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Snapshot returns a copy of all messages in display order.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

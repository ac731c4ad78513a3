// Package chat defines the chat domain types shared by the connection manager
// and its presenters.
//
// Conventions:
//   - Identity: trimmed, non-empty display name
//   - Endpoint: relay URI with a ws:// or wss:// scheme
//   - Timestamps: local time.Time captured when the message entered the log
//   - IDs: uuid.UUID, generated client-side
package chat

// Package terminal renders connection events as lines of text.
//
// The Presenter implements connection.Listener, so it can be passed as the
// manager's listener directly. Own messages, remote messages, status changes
// and connection errors each get their own style when colours are enabled.
package terminal

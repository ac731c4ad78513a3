// Package connection implements the relay connection lifecycle.
//
// The package has three layers:
//   - Session: one physical WebSocket connection attempt, policy free
//   - Policy: decides whether and when to retry after an abnormal close
//   - Manager: owns the single live session, drives reconnection and
//     republishes normalized events to listeners
//
// Every transport callback and reconnect timer is funnelled through one
// eventloop.Loop, so all state transitions run serially. Callbacks from a
// session that is no longer the live one are dropped by identity check.
package connection

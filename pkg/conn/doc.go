// Package conn owns the outbound stream connection to a collector.
//
// A Manager moves through a small state machine:
//
//	Disconnected -> Connecting -> Connected -> Disconnected (error or Disconnect)
//	any state -> Closed (terminal)
//
// EnsureConnected dials once and never retries; retry policy belongs to the
// caller. Send writes a whole buffer or fails; on failure the socket is closed
// before the error is returned, so a caller never reuses a half-open
// connection. The caller only ever sees three outcomes: sent, ConnectError or
// WriteError.
package conn

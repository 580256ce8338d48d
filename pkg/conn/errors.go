package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("conn: closed")

	// ErrNotConnected is returned by Send when no connection is established.
	ErrNotConnected = errors.New("conn: not connected")
)

// ConnectError reports a failed or timed out dial.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports a transmission failure on an established connection.
// Written is how many bytes of the buffer reached the socket before the
// failure.
type WriteError struct {
	Address string
	Written int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s after %d bytes: %v", e.Address, e.Written, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

package shipper

import (
	"errors"
	"fmt"

	"github.com/bft-labs/socketship/pkg/frame"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("shipper: closed")

// ConfigurationError reports a missing or malformed setting. It is fatal at
// construction and never retried.
type ConfigurationError struct {
	Section string
	Option  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("shipper: configuration [%s] %s: %v", e.Section, e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DeliveryError reports an event that could not be delivered after every
// attempt allowed by the RetryPolicy. Err is the last attempt's
// *conn.ConnectError or *conn.WriteError.
type DeliveryError struct {
	Event    frame.Event
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("shipper: delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

package shipper

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/socketship/pkg/config"
)

const (
	// DefaultSection is the configuration section read by New.
	DefaultSection = "output_socketlog"

	// DefaultTimeout bounds dials and sends when no timeout is configured.
	DefaultTimeout = 5 * time.Second
)

// Endpoint is a resolved collector destination.
type Endpoint struct {
	// Address is host:port.
	Address string

	// Timeout bounds every dial and every send.
	Timeout time.Duration
}

// Validate checks Address and Timeout.
func (e Endpoint) Validate() error {
	if e.Address == "" {
		return errors.New("address is empty")
	}
	_, port, err := net.SplitHostPort(e.Address)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("address %q has no port", e.Address)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", e.Timeout)
	}
	return nil
}

// ResolveEndpoint reads address and timeout from section. address is
// required; timeout is in seconds and defaults to DefaultTimeout.
func ResolveEndpoint(p config.Provider, section string) (Endpoint, error) {
	addr, err := p.Lookup(section, "address")
	if err != nil {
		return Endpoint{}, &ConfigurationError{Section: section, Option: "address", Err: err}
	}
	timeout, err := config.Duration(p, section, "timeout", DefaultTimeout)
	if err != nil {
		return Endpoint{}, &ConfigurationError{Section: section, Option: "timeout", Err: err}
	}

	ep := Endpoint{Address: addr, Timeout: timeout}
	if err := ep.Validate(); err != nil {
		opt := "address"
		if timeout <= 0 {
			opt = "timeout"
		}
		return Endpoint{}, &ConfigurationError{Section: section, Option: opt, Err: err}
	}
	return ep, nil
}

// ResolveRetryPolicy reads retries, backoff and max_backoff from section,
// falling back to DefaultRetryPolicy for anything unset.
func ResolveRetryPolicy(p config.Provider, section string) (RetryPolicy, error) {
	def := DefaultRetryPolicy()

	retries, err := config.Int(p, section, "retries", def.Retries)
	if err != nil {
		return RetryPolicy{}, &ConfigurationError{Section: section, Option: "retries", Err: err}
	}
	if retries < 0 {
		return RetryPolicy{}, &ConfigurationError{Section: section, Option: "retries", Err: fmt.Errorf("must not be negative, got %d", retries)}
	}
	backoff, err := config.Duration(p, section, "backoff", def.Backoff)
	if err != nil {
		return RetryPolicy{}, &ConfigurationError{Section: section, Option: "backoff", Err: err}
	}
	maxBackoff, err := config.Duration(p, section, "max_backoff", def.MaxBackoff)
	if err != nil {
		return RetryPolicy{}, &ConfigurationError{Section: section, Option: "max_backoff", Err: err}
	}

	return RetryPolicy{Retries: retries, Backoff: backoff, MaxBackoff: maxBackoff}, nil
}

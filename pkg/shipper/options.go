package shipper

import (
	"time"

	"github.com/bft-labs/socketship/pkg/conn"
	"github.com/bft-labs/socketship/pkg/frame"
)

// Option configures optional behavior of a Shipper.
type Option func(*options)

type options struct {
	section  string
	lazy     bool
	retry    *RetryPolicy
	dialer   conn.Dialer
	probe    *time.Duration
	encoder  *frame.Encoder
	observer Observer
}

func defaultOptions() options {
	return options{
		section:  DefaultSection,
		encoder:  frame.NewEncoder(),
		observer: NopObserver{},
	}
}

// WithSection reads settings from section instead of DefaultSection.
func WithSection(section string) Option {
	return func(o *options) {
		if section != "" {
			o.section = section
		}
	}
}

// WithLazyConnect defers dialing to Start or the first Write instead of
// connecting during construction.
func WithLazyConnect() Option {
	return func(o *options) {
		o.lazy = true
	}
}

// WithRetryPolicy overrides the retry settings read from configuration.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = &p
	}
}

// WithDialer replaces the TCP dialer, mainly for tests.
func WithDialer(d conn.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithProbe sets the window used to detect a collector that hung up between
// writes. Zero disables the check. See conn.WithProbe.
func WithProbe(d time.Duration) Option {
	return func(o *options) {
		o.probe = &d
	}
}

// WithEncoder replaces the frame encoder.
func WithEncoder(e *frame.Encoder) Option {
	return func(o *options) {
		if e != nil {
			o.encoder = e
		}
	}
}

// WithObserver registers an observer. Repeated calls add observers.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			return
		}
		switch cur := o.observer.(type) {
		case NopObserver:
			o.observer = obs
		case MultiObserver:
			o.observer = append(append(MultiObserver(nil), cur...), obs)
		default:
			o.observer = MultiObserver{cur, obs}
		}
	}
}

package shipper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/socketship/pkg/config"
	"github.com/bft-labs/socketship/pkg/conn"
	"github.com/bft-labs/socketship/pkg/frame"
)

// Shipper writes events to one collector.
//
// Write and Close serialize on an internal mutex, so a Shipper may be shared,
// but events written concurrently reach the wire in whatever order the
// callers acquire it. Ordering is only guaranteed per calling goroutine.
type Shipper struct {
	endpoint Endpoint
	retry    RetryPolicy
	encoder  *frame.Encoder
	observer Observer

	mu     sync.Mutex
	mgr    *conn.Manager
	closed bool
}

// New resolves the endpoint and retry policy from p and returns a Shipper.
// Unless WithLazyConnect is given it connects before returning, and a failed
// connect is returned as the construction error.
func New(p config.Provider, opts ...Option) (*Shipper, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ep, err := ResolveEndpoint(p, o.section)
	if err != nil {
		return nil, err
	}
	if o.retry == nil {
		policy, err := ResolveRetryPolicy(p, o.section)
		if err != nil {
			return nil, err
		}
		o.retry = &policy
	}
	return newShipper(ep, o)
}

// NewWithEndpoint is New for an already resolved Endpoint.
func NewWithEndpoint(ep Endpoint, opts ...Option) (*Shipper, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ep.Validate(); err != nil {
		return nil, &ConfigurationError{Section: o.section, Option: "address", Err: err}
	}
	return newShipper(ep, o)
}

func newShipper(ep Endpoint, o options) (*Shipper, error) {
	retry := DefaultRetryPolicy()
	if o.retry != nil {
		retry = *o.retry
	}
	if retry.Retries < 0 {
		retry.Retries = 0
	}

	var connOpts []conn.Option
	if o.dialer != nil {
		connOpts = append(connOpts, conn.WithDialer(o.dialer))
	}
	if o.probe != nil {
		connOpts = append(connOpts, conn.WithProbe(*o.probe))
	}

	s := &Shipper{
		endpoint: ep,
		retry:    retry,
		encoder:  o.encoder,
		observer: o.observer,
		mgr:      conn.New(ep.Address, ep.Timeout, connOpts...),
	}

	if !o.lazy {
		if err := s.Start(context.Background()); err != nil {
			_ = s.mgr.Close()
			return nil, fmt.Errorf("shipper: connect on start: %w", err)
		}
	}
	return s, nil
}

// Start connects to the collector if not already connected. Shippers built
// with WithLazyConnect may call it to pay the connection cost up front.
func (s *Shipper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.connectLocked(ctx)
}

// Write encodes event and sends it as one frame.
//
// It returns a *frame.EncodingError when the event cannot be encoded; the
// connection is left untouched. When the connection is down or breaks
// mid-send, Write redials and resends the same frame as the RetryPolicy
// allows and returns a *DeliveryError carrying event if every attempt fails.
// After Close it returns ErrClosed.
func (s *Shipper) Write(ctx context.Context, event frame.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	b, err := s.encoder.Encode(event)
	if err != nil {
		return err
	}

	attempts := 1 + s.retry.Retries
	var last error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, s.retry.delay(attempt-1)); err != nil {
				last = err
				break
			}
		}
		made = attempt

		start := time.Now()
		err := s.connectLocked(ctx)
		if err == nil {
			err = s.mgr.Send(ctx, b)
		}
		if err == nil {
			s.observer.OnSend(len(b), time.Since(start))
			return nil
		}

		last = err
		s.observer.OnSendError(err, attempt)
		if ctx.Err() != nil {
			break
		}
	}

	de := &DeliveryError{Event: event, Attempts: made, Err: last}
	s.observer.OnDeliveryFailure(de)
	return de
}

// Close releases the connection. Subsequent Writes fail with ErrClosed.
// Close is idempotent.
func (s *Shipper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.mgr.Close()
}

// Endpoint returns the collector endpoint.
func (s *Shipper) Endpoint() Endpoint { return s.endpoint }

// RetryPolicy returns the retry policy in effect.
func (s *Shipper) RetryPolicy() RetryPolicy { return s.retry }

// State returns the connection state.
func (s *Shipper) State() conn.State { return s.mgr.State() }

func (s *Shipper) connectLocked(ctx context.Context) error {
	before := s.mgr.Dials()
	if err := s.mgr.EnsureConnected(ctx); err != nil {
		return err
	}
	if s.mgr.Dials() != before {
		s.observer.OnConnect(s.endpoint.Address)
	}
	return nil
}

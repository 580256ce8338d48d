package shipper

import (
	"context"
	"time"
)

// RetryPolicy controls what Write does when a connect or send fails.
type RetryPolicy struct {
	// Retries is how many extra attempts follow the first one.
	Retries int

	// Backoff is the pause before the first retry. It doubles for each
	// further retry up to MaxBackoff. Zero retries immediately.
	Backoff time.Duration

	// MaxBackoff caps the pause. Zero means DefaultMaxBackoff.
	MaxBackoff time.Duration
}

// DefaultMaxBackoff caps retry pauses when RetryPolicy.MaxBackoff is unset.
const DefaultMaxBackoff = 10 * time.Second

// DefaultRetryPolicy reconnects and resends once, without pausing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 1}
}

// delay returns the pause before retry number n (1-based).
func (p RetryPolicy) delay(n int) time.Duration {
	if p.Backoff <= 0 || n <= 0 {
		return 0
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		d = max
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

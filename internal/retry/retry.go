package retry

import (
	"context"
	"errors"
	"time"
)

// Policy defines a bounded fixed-delay retry. MaxRetries counts re-attempts
// after the first call, so a policy with MaxRetries=3 runs an action at most
// four times.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultPolicy matches the historical automation behavior: three retries,
// one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Delay: time.Second}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	return p
}

// permanentError marks a failure that re-running the action cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops retrying immediately. Structural failures
// (no slots on the page, unparseable slot time, oversized notes) go through
// here; transient element-timing failures stay retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn until it succeeds, the retry budget runs out, a permanent error
// is returned, or ctx is canceled. The last error is returned unwrapped from
// the permanent marker.
func Do(ctx context.Context, p Policy, fn func() error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}
	}

	return lastErr
}

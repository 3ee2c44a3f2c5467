package backend

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff and
// jitter. Permanent failures (4xx other than 408/429, context cancellation)
// fail immediately.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the initial call.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = 2
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 250 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// Execute runs fn, retrying transient errors up to MaxRetries times.
func (p RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := p.BaseDelay

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			// ±25% jitter keeps retry storms from aligning.
			jitter := 0.75 + randFloat64()*0.5
			select {
			case <-time.After(time.Duration(float64(delay) * jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(float64(delay) * p.Multiplier)
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isRetriable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", p.MaxRetries, lastErr)
}

// transportError marks network-level failures (dial, reset, body read).
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// statusError carries a non-2xx response; the body is the backend's opaque
// failure message and is propagated verbatim into slice error state.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return http.StatusText(e.status)
	}
	return e.body
}

func isRetriable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusRequestTimeout, se.status == http.StatusTooManyRequests:
			return true
		case se.status >= 500:
			return true
		default:
			return false
		}
	}
	return false
}

func randFloat64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return 0.5
	}
	n := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(uint64(1)<<53)
}

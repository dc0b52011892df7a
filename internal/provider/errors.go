// Package provider implements the per-provider resilience layer: a token
// bucket rate limiter, bounded retry with backoff, and a circuit breaker,
// composed into a Gate around each external search adapter.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RateLimitError reports a provider-side throttle. Retryable; carries the
// provider-suggested wait when known.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %v", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// AccessDeniedError is terminal for the URL it names and is recorded
// permanently so later cycles skip it.
type AccessDeniedError struct {
	Provider string
	URL      string
	Status   int
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: access denied (%d) for %s", e.Provider, e.Status, e.URL)
}

// TimeoutError is retryable up to the retry budget, then terminal for the
// call.
type TimeoutError struct {
	Provider string
	Op       string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s timed out", e.Provider, e.Op)
}

// IsTransient reports whether an error is worth retrying inside the gate.
// Access denials and context cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var to *TimeoutError
	if errors.As(err, &to) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

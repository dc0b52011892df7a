package provider

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"deepscout/internal/logging"
	"deepscout/internal/types"
)

// RetryConfig configures bounded retry for transient provider errors.
type RetryConfig struct {
	MaxAttempts int           // total attempts, 3..5 typical
	BaseBackoff time.Duration // doubles each retry
	MaxBackoff  time.Duration // backoff cap
	Jitter      float64       // fraction of backoff randomized, 0..1
}

// DefaultRetryConfig returns the stock retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseBackoff: 4 * time.Second,
		MaxBackoff:  60 * time.Second,
		Jitter:      0.2,
	}
}

// ErrRetriesExhausted indicates all attempts failed with transient errors.
var ErrRetriesExhausted = errors.New("retries exhausted")

// searchFunc is one raw provider attempt.
type searchFunc func(ctx context.Context) ([]types.SourceResult, error)

// withRetry runs fn with exponential backoff and jitter. Terminal errors
// abort immediately; transient errors consume the retry budget.
func withRetry(ctx context.Context, cfg RetryConfig, providerName string, fn searchFunc) ([]types.SourceResult, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		results, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logging.Providers("%s: retry succeeded on attempt %d", providerName, attempt+1)
			}
			return results, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := backoffFor(cfg, attempt, err)
		logging.Providers("%s: attempt %d/%d failed (%v), retrying in %v",
			providerName, attempt+1, cfg.MaxAttempts, err, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return nil, errors.Join(ErrRetriesExhausted, lastErr)
}

// backoffFor computes the delay before the next attempt. A provider-supplied
// retry-after takes precedence over the exponential schedule.
func backoffFor(cfg RetryConfig, attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		if rl.RetryAfter > cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
		return rl.RetryAfter
	}

	backoff := float64(cfg.BaseBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		spread := backoff * cfg.Jitter
		backoff = backoff - spread/2 + rand.Float64()*spread
	}
	return time.Duration(backoff)
}

package provider

import (
	"context"
	"errors"
	"time"

	"deepscout/internal/logging"
	"deepscout/internal/types"
)

// Adapter is one raw external search source. Implementations live in the
// adapters subpackage and never deal with rate limits, retries, or
// breakers; the Gate owns all of that.
type Adapter interface {
	Name() string
	Category() string
	Priority() int
	Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error)
}

// FailureSink receives permanent URL-level failures discovered during a
// call. Implemented by the memory store.
type FailureSink interface {
	RecordAccessFailure(url, source, errorType, message string) error
}

// GateConfig bundles the three gate policies for one provider.
type GateConfig struct {
	Retry       RetryConfig
	Circuit     CircuitConfig
	RPS         float64
	Burst       int
	CallTimeout time.Duration
}

// Gate wraps one provider's raw call with rate limiting, bounded retry, and
// a circuit breaker, composed in that order. Search never returns a
// provider-level error: failures are logged and yield an empty result, and
// the circuit is updated exactly once per completed outer call. Retries
// inside the gate do not touch the breaker.
type Gate struct {
	adapter  Adapter
	bucket   *TokenBucket
	circuit  *Circuit
	retry    RetryConfig
	timeout  time.Duration
	failures FailureSink
}

// NewGate builds a gate around an adapter.
func NewGate(adapter Adapter, cfg GateConfig, failures FailureSink) *Gate {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		adapter:  adapter,
		bucket:   NewTokenBucket(cfg.RPS, cfg.Burst),
		circuit:  NewCircuit(cfg.Circuit),
		retry:    cfg.Retry,
		timeout:  timeout,
		failures: failures,
	}
}

// Name returns the wrapped adapter's provider name.
func (g *Gate) Name() string { return g.adapter.Name() }

// Category returns the adapter's source category.
func (g *Gate) Category() string { return g.adapter.Category() }

// Priority returns the adapter's static rank tiebreak.
func (g *Gate) Priority() int { return g.adapter.Priority() }

// Circuit exposes breaker state for the progress surface.
func (g *Gate) Circuit() *Circuit { return g.circuit }

// Search runs one guarded provider call. Results keep the provider's own
// ordering. An open breaker short-circuits to an empty result without
// invoking the provider and without mutating the breaker.
func (g *Gate) Search(ctx context.Context, query string, limit int, filters map[string]string) []types.SourceResult {
	name := g.adapter.Name()

	if !g.circuit.Allow() {
		logging.ProvidersDebug("%s: circuit %s, skipping call", name, g.circuit.State())
		return nil
	}

	results, err := withRetry(ctx, g.retry, name, func(ctx context.Context) ([]types.SourceResult, error) {
		if err := g.bucket.Wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.adapter.Search(callCtx, query, limit, filters)
	})

	if err != nil {
		// A caller-cancelled context is not a provider failure. Hand back a
		// probe slot if we held one, but do not count success or failure.
		if errors.Is(err, context.Canceled) {
			g.circuit.RecordAbandon()
			return nil
		}
		g.recordTerminal(query, err)
		g.circuit.RecordFailure()
		logging.Providers("%s: search failed after retries: %v", name, err)
		return nil
	}

	g.circuit.RecordSuccess()

	now := time.Now()
	for i := range results {
		results[i].Provider = name
		results[i].Success = true
		if results[i].RetrievedAt.IsZero() {
			results[i].RetrievedAt = now
		}
	}
	logging.ProvidersDebug("%s: %d results for %q", name, len(results), query)
	return results
}

// recordTerminal persists URL-level permanent failures so later cycles can
// skip them before issuing calls.
func (g *Gate) recordTerminal(query string, err error) {
	if g.failures == nil {
		return
	}
	var denied *AccessDeniedError
	if errors.As(err, &denied) && denied.URL != "" {
		if rerr := g.failures.RecordAccessFailure(denied.URL, g.adapter.Name(), "access_denied", denied.Error()); rerr != nil {
			logging.Providers("%s: failed to record access failure: %v", g.adapter.Name(), rerr)
		}
	}
}

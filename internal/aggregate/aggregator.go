// Package aggregate fans a query out to ranked providers through their
// gates, bounded by a global concurrency cap, and merges the results.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"deepscout/internal/logging"
	"deepscout/internal/provider"
	"deepscout/internal/types"
)

// ErrSourceExhausted signals that every provider returned empty for the
// cycle. It is raised rather than returning an empty list so the
// orchestrator can tell "sources are done" from "no results yet".
var ErrSourceExhausted = errors.New("all configured sources exhausted without results")

// Memory is the slice of the memory collaborator the aggregator consumes.
type Memory interface {
	IsKnownFailure(url string) bool
	GetSourceEffectiveness(source, domain string) float64
}

// Config tunes the aggregator.
type Config struct {
	// MaxConcurrent caps simultaneous outbound provider calls. It composes
	// with each provider's own token bucket rather than replacing it.
	MaxConcurrent int
	// PerCallTimeout bounds one provider's whole gated call (including its
	// retries). It is independent of, and shorter than, the phase budget.
	PerCallTimeout time.Duration
}

// Aggregator merges results from many providers, isolating per-provider
// failure.
type Aggregator struct {
	registry *provider.Registry
	mem      Memory
	cfg      Config
}

// New creates an aggregator over a provider registry.
func New(registry *provider.Registry, mem Memory, cfg Config) *Aggregator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 5
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 45 * time.Second
	}
	return &Aggregator{registry: registry, mem: mem, cfg: cfg}
}

// Registry exposes the owned registry (for category planning).
func (a *Aggregator) Registry() *provider.Registry { return a.registry }

// rankedProvider pairs a gate with its learned effectiveness for ranking.
type rankedProvider struct {
	gate  *provider.Gate
	score float64
}

// Rank orders provider names by learned effectiveness descending, ties
// broken by static priority descending.
func (a *Aggregator) Rank(providers []string, domain string) []*provider.Gate {
	ranked := make([]rankedProvider, 0, len(providers))
	for _, name := range providers {
		gate, ok := a.registry.Gate(name)
		if !ok {
			logging.Providers("aggregator: unknown provider %q skipped", name)
			continue
		}
		score := 0.5
		if a.mem != nil {
			score = a.mem.GetSourceEffectiveness(name, domain)
		}
		ranked = append(ranked, rankedProvider{gate: gate, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].gate.Priority() > ranked[j].gate.Priority()
	})
	gates := make([]*provider.Gate, len(ranked))
	for i, r := range ranked {
		gates[i] = r.gate
	}
	return gates
}

// Collect fans the query out to the given providers concurrently and merges
// their results in rank order, deduplicating URLs and skipping URLs known
// as permanent failures. Per-provider ordering is preserved inside each
// provider's slice. A slow or failing provider cannot stall the aggregate
// beyond PerCallTimeout, and provider-level failure surfaces only as an
// empty contribution. Returns ErrSourceExhausted when every provider came
// back empty.
func (a *Aggregator) Collect(ctx context.Context, query, domain string, providers []string, maxResults int) ([]types.SourceResult, error) {
	gates := a.Rank(providers, domain)
	if len(gates) == 0 {
		return nil, ErrSourceExhausted
	}
	if maxResults <= 0 {
		maxResults = 30
	}
	perProvider := maxResults/len(gates) + 1

	buckets := make([][]types.SourceResult, len(gates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrent)
	for i, gate := range gates {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.cfg.PerCallTimeout)
			defer cancel()
			results := gate.Search(callCtx, query, perProvider, nil)
			mu.Lock()
			buckets[i] = results
			mu.Unlock()
			return nil
		})
	}
	// Gates never return errors, so the join only propagates cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]types.SourceResult, 0, maxResults)
	seen := make(map[string]bool)
	total := 0
	for _, bucket := range buckets {
		total += len(bucket)
		for _, r := range bucket {
			if seen[r.URL] {
				continue
			}
			if a.mem != nil && a.mem.IsKnownFailure(r.URL) {
				logging.ProvidersDebug("aggregator: skipping known-failure url %s", r.URL)
				continue
			}
			seen[r.URL] = true
			merged = append(merged, r)
			if len(merged) >= maxResults {
				break
			}
		}
	}

	if total == 0 {
		return nil, ErrSourceExhausted
	}
	logging.Providers("aggregator: %d providers yielded %d results (%d after merge) for %q",
		len(gates), total, len(merged), query)
	return merged, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"deepscout/internal/aggregate"
	"deepscout/internal/config"
	"deepscout/internal/logging"
	"deepscout/internal/memory"
	"deepscout/internal/provider"
	"deepscout/internal/provider/adapters"
	"deepscout/internal/research"
	"deepscout/internal/router"
	"deepscout/internal/saturation"
	"deepscout/internal/types"
)

// engine bundles the wired session components.
type engine struct {
	store        *memory.Store
	registry     *provider.Registry
	aggregator   *aggregate.Aggregator
	router       *router.Router
	orchestrator *research.Orchestrator
	progress     chan types.Progress
	events       chan types.Event
}

// buildEngine wires a full research engine from configuration.
func buildEngine(ctx context.Context, cfg *config.Config, mode types.PrivacyMode) (*engine, error) {
	store, err := memory.New(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	registry, err := buildRegistry(cfg.Providers, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	// The aggregate deadline sits above the per-gate call timeout so a
	// gate's own retries are what usually run out first.
	callTimeout := config.ParseDurationOr(cfg.Providers.CallTimeout, 30*time.Second)
	agg := aggregate.New(registry, store, aggregate.Config{
		MaxConcurrent:  cfg.Providers.MaxConcurrentSearches,
		PerCallTimeout: callTimeout * 3 / 2,
	})

	rt, err := buildRouter(ctx, cfg.LLM, mode)
	if err != nil {
		store.Close()
		return nil, err
	}

	evaluator := saturation.New(saturation.Config{
		EntityRatioThreshold: cfg.Research.EntityRatioThreshold,
		FactRatioThreshold:   cfg.Research.FactRatioThreshold,
		CoverageThreshold:    cfg.Research.CoverageThreshold,
		DebounceCycles:       cfg.Research.SaturationDebounceCycles,
		MaxCycles:            cfg.Research.MaxCycles,
	})

	progress := make(chan types.Progress, 16)
	events := make(chan types.Event, 64)

	orch := research.New(research.Config{
		Collector:          agg,
		Registry:           registry,
		LLM:                rt,
		Memory:             store,
		Evaluator:          evaluator,
		PrivacyMode:        mode,
		MaxResultsPerCycle: cfg.Research.MaxResultsPerCycle,
		AutoApprove:        cfg.Research.AutoApprove,
		PhaseTimeout:       config.ParseDurationOr(cfg.Research.PhaseTimeout, 0),
		ProgressChan:       progress,
		EventChan:          events,
	})

	return &engine{
		store:        store,
		registry:     registry,
		aggregator:   agg,
		router:       rt,
		orchestrator: orch,
		progress:     progress,
		events:       events,
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

// buildRegistry constructs the gated provider fleet from configuration.
func buildRegistry(cfg config.ProvidersConfig, failures provider.FailureSink) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		adapter, err := buildAdapter(src)
		if err != nil {
			return nil, err
		}
		gate := provider.NewGate(adapter, provider.GateConfig{
			Retry: provider.RetryConfig{
				MaxAttempts: src.MaxAttempts,
				BaseBackoff: config.ParseDurationOr(src.BaseBackoff, 0),
				MaxBackoff:  config.ParseDurationOr(src.MaxBackoff, 0),
			},
			Circuit: provider.CircuitConfig{
				FailureThreshold: src.FailureThreshold,
				BaseCooldown:     config.ParseDurationOr(src.BaseCooldown, 0),
				MaxCooldown:      config.ParseDurationOr(src.MaxCooldown, 0),
			},
			RPS:         src.RPS,
			Burst:       src.Burst,
			CallTimeout: config.ParseDurationOr(cfg.CallTimeout, 0),
		}, failures)
		registry.Register(gate)
		logging.Providers("registered provider %s (category=%s priority=%d rps=%.1f)",
			src.Name, src.Category, src.Priority, src.RPS)
	}
	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	return registry, nil
}

func buildAdapter(src config.ProviderSource) (provider.Adapter, error) {
	switch src.Name {
	case "arxiv":
		return adapters.NewArxiv(src.Priority), nil
	case "pubmed":
		return adapters.NewPubMed(src.APIKey, src.Priority), nil
	case "semantic_scholar":
		return adapters.NewSemanticScholar(src.APIKey, src.Priority), nil
	case "duckduckgo":
		return adapters.NewDuckDuckGo(src.Priority), nil
	case "rss":
		return adapters.NewRSS(src.FeedURLs, src.Priority), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", src.Name)
	}
}

// buildRouter constructs the tier clients the privacy mode can reach.
// Cloud clients are not even instantiated in local-only mode.
func buildRouter(ctx context.Context, cfg config.LLMConfig, mode types.PrivacyMode) (*router.Router, error) {
	clients := map[router.Tier]router.Client{
		router.TierLocalFast:     router.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.FastModel),
		router.TierLocalPowerful: router.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.PowerfulModel),
	}

	if mode == types.PrivacyCloudAllowed && cfg.Gemini.APIKey != "" {
		best, err := router.NewGenAIClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.BestModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud client: %w", err)
		}
		fast, err := router.NewGenAIClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.FastModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud client: %w", err)
		}
		clients[router.TierCloudBest] = best
		clients[router.TierCloudFast] = fast
	}

	return router.New(router.DefaultPreferences(), clients)
}

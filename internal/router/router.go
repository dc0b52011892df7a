package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deepscout/internal/logging"
	"deepscout/internal/types"
)

// Router selects models from the preference table and invokes them. It is
// the only path by which completions are produced.
type Router struct {
	prefs   PreferenceTable
	clients map[Tier]Client
}

// New builds a router. The table is validated here, at the boundary; every
// later Select trusts it.
func New(prefs PreferenceTable, clients map[Tier]Client) (*Router, error) {
	if prefs == nil {
		prefs = DefaultPreferences()
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	return &Router{prefs: prefs, clients: clients}, nil
}

// Select walks the preference row for the mode and complexity and returns
// the first tier with an available model. Under LOCAL_ONLY the row contains
// only local tiers, so exhaustion yields ErrModelUnavailable rather than
// any cloud substitute.
func (r *Router) Select(ctx context.Context, complexity types.Complexity, mode types.PrivacyMode) (ModelRecommendation, error) {
	tiers := r.prefs.tiersFor(mode, complexity)
	if len(tiers) == 0 {
		return ModelRecommendation{}, fmt.Errorf("%w: no preference row for %s/%s", ErrModelUnavailable, mode, complexity)
	}

	for _, tier := range tiers {
		client, ok := r.clients[tier]
		if !ok || !client.Available(ctx) {
			continue
		}
		rec := ModelRecommendation{
			Model:            client.Model(),
			Tier:             tier,
			Reasoning:        fmt.Sprintf("%s preference for %s complexity under %s", tier, complexityLabel(complexity), mode),
			PrivacyCompliant: true,
		}
		logging.Router("selected %s (%s) for %s/%s", rec.Model, tier, mode, complexity)
		return rec, nil
	}

	return ModelRecommendation{}, fmt.Errorf("%w: no model in tiers %v under %s", ErrModelUnavailable, tiers, mode)
}

// Complete produces a completion on the recommended tier, falling back to
// later tiers of the same preference row on retryable failure. Edges to
// tiers outside the row do not exist, so a LOCAL_ONLY session can never
// drift onto a cloud model here.
func (r *Router) Complete(ctx context.Context, messages []Message, complexity types.Complexity, mode types.PrivacyMode) (string, ModelRecommendation, error) {
	tiers := r.prefs.tiersFor(mode, complexity)
	var lastErr error = ErrModelUnavailable

	for _, tier := range tiers {
		client, ok := r.clients[tier]
		if !ok || !client.Available(ctx) {
			continue
		}
		text, err := client.Complete(ctx, messages)
		if err == nil {
			rec := ModelRecommendation{Model: client.Model(), Tier: tier, PrivacyCompliant: true}
			return text, rec, nil
		}
		lastErr = err
		if !errors.Is(err, ErrModelOverloaded) && !errors.Is(err, context.DeadlineExceeded) {
			break
		}
		logging.Router("tier %s failed (%v), trying next declared tier", tier, err)
	}

	return "", ModelRecommendation{}, fmt.Errorf("completion failed under %s: %w", mode, lastErr)
}

// Stream produces a token stream on the first available tier of the row.
// The returned channel always receives a terminal Done or Err event before
// closing, including on caller cancellation.
func (r *Router) Stream(ctx context.Context, messages []Message, complexity types.Complexity, mode types.PrivacyMode) (<-chan TokenEvent, ModelRecommendation, error) {
	rec, err := r.Select(ctx, complexity, mode)
	if err != nil {
		return nil, ModelRecommendation{}, err
	}
	client := r.clients[rec.Tier]

	inner, err := client.Stream(ctx, messages)
	if err != nil {
		return nil, ModelRecommendation{}, err
	}

	out := make(chan TokenEvent, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				out <- TokenEvent{Model: rec.Model, Err: ctx.Err()}
				return
			case ev, ok := <-inner:
				if !ok {
					// Client closed without a terminal marker; emit one so
					// no consumer blocks on a silent end.
					out <- TokenEvent{Model: rec.Model, Done: true}
					return
				}
				ev.Model = rec.Model
				out <- ev
				if ev.Done || ev.Err != nil {
					return
				}
			}
		}
	}()
	return out, rec, nil
}

// privacySensitive holds keyword groups whose presence recommends keeping
// the session local.
var privacySensitive = map[string][]string{
	"medical":   {"diagnosis", "treatment", "symptom", "medication", "patient", "disease", "therapy", "clinical"},
	"legal":     {"lawsuit", "contract", "attorney", "liability", "litigation", "settlement"},
	"financial": {"salary", "tax", "debt", "bankruptcy", "account number", "investment portfolio"},
	"personal":  {"my health", "my family", "my employer", "my address", "my records"},
}

// RecommendPrivacyMode is an advisory classifier. It never overrides an
// explicit user-chosen mode; callers apply it only when no mode was given.
// Any model call backing this classification would itself have to run
// locally, since the query content is exactly what privacy mode protects;
// keyword matching avoids the call entirely.
func (r *Router) RecommendPrivacyMode(query string) (types.PrivacyMode, string) {
	lower := strings.ToLower(query)
	for domain, words := range privacySensitive {
		for _, w := range words {
			if strings.Contains(lower, w) {
				reason := fmt.Sprintf("query touches %s content (%q); recommending local-only processing", domain, w)
				return types.PrivacyLocalOnly, reason
			}
		}
	}
	return types.PrivacyCloudAllowed, "no privacy-sensitive content detected"
}

// CompletionTimeout is the default bound for one completion call.
const CompletionTimeout = 120 * time.Second

package provider

import (
	"sort"
	"sync"
)

// Registry holds the provider gates for one session. It replaces any notion
// of process-global breaker/limiter singletons: the aggregator owns a
// registry and passes it by reference, so concurrent callers share the same
// per-provider counters without hidden state.
type Registry struct {
	mu    sync.RWMutex
	gates map[string]*Gate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]*Gate)}
}

// Register adds or replaces the gate for its provider name.
func (r *Registry) Register(g *Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[g.Name()] = g
}

// Gate returns the gate for a provider name.
func (r *Registry) Gate(name string) (*Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[name]
	return g, ok
}

// Names returns all registered provider names, sorted for determinism.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gates))
	for name := range r.gates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns the distinct source categories of all registered
// gates, sorted. The saturation evaluator uses this as the planned
// coverage denominator.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, g := range r.gates {
		seen[g.Category()] = true
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"deepscout/internal/aggregate"
	"deepscout/internal/provider"
	"deepscout/internal/router"
	"deepscout/internal/saturation"
	"deepscout/internal/types"
)

// stubAdapter only exists to register categories in the test registry; the
// scripted collector below bypasses actual gate calls.
type stubAdapter struct {
	name     string
	category string
}

func (a *stubAdapter) Name() string     { return a.name }
func (a *stubAdapter) Category() string { return a.category }
func (a *stubAdapter) Priority() int    { return 50 }
func (a *stubAdapter) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]types.SourceResult, error) {
	return nil, nil
}

func testRegistry(names ...string) *provider.Registry {
	reg := provider.NewRegistry()
	for _, n := range names {
		reg.Register(provider.NewGate(&stubAdapter{name: n, category: "web"}, provider.GateConfig{
			RPS: 1000, Burst: 10, CallTimeout: time.Second,
			Retry:   provider.RetryConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
			Circuit: provider.CircuitConfig{FailureThreshold: 5, BaseCooldown: time.Hour, MaxCooldown: time.Hour},
		}, nil))
	}
	return reg
}

// scriptedCollector returns a scripted per-call outcome.
type scriptedCollector struct {
	mu    sync.Mutex
	calls int
	// script[i] is the i-th call's results; nil means exhausted.
	script [][]types.SourceResult
}

func (c *scriptedCollector) Collect(ctx context.Context, query, domain string, providers []string, maxResults int) ([]types.SourceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	if idx >= len(c.script) || c.script[idx] == nil {
		return nil, aggregate.ErrSourceExhausted
	}
	return c.script[idx], nil
}

// unavailableLLM forces every phase onto its heuristic fallback.
type unavailableLLM struct{}

func (unavailableLLM) Complete(ctx context.Context, messages []router.Message, complexity types.Complexity, mode types.PrivacyMode) (string, router.ModelRecommendation, error) {
	return "", router.ModelRecommendation{}, router.ErrModelUnavailable
}

func (unavailableLLM) RecommendPrivacyMode(query string) (types.PrivacyMode, string) {
	return types.PrivacyCloudAllowed, "no privacy-sensitive content detected"
}

// memStore is an in-memory research.Memory.
type memStore struct {
	mu          sync.Mutex
	checkpoints map[string]types.ResearchState
	documents   []types.SourceResult
	saves       int
}

func newMemStore() *memStore {
	return &memStore{checkpoints: make(map[string]types.ResearchState)}
}

func (m *memStore) SaveCheckpoint(state *types.ResearchState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[state.SessionID] = *state
	m.saves++
	return nil
}

func (m *memStore) LoadCheckpoint(sessionID string) (*types.ResearchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.checkpoints[sessionID]
	if !ok {
		return nil, fmt.Errorf("no checkpoint for session %s", sessionID)
	}
	return &state, nil
}

func (m *memStore) StoreDocument(sessionID string, r types.SourceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, r)
	return nil
}

func (m *memStore) RecordSourceOutcome(provider, domain string, success bool, quality float64) error {
	return nil
}

func testConfig(c Collector, store Memory) Config {
	return Config{
		Collector:          c,
		Registry:           testRegistry("alpha", "beta"),
		LLM:                unavailableLLM{},
		Memory:             store,
		Evaluator:          saturation.New(saturation.DefaultConfig()),
		PrivacyMode:        types.PrivacyLocalOnly,
		MaxResultsPerCycle: 30,
		AutoApprove:        true,
		PhaseTimeout:       5 * time.Second,
	}
}

func sourceResult(providerName, url, title, snippet string) types.SourceResult {
	return types.SourceResult{
		Provider:     providerName,
		URL:          url,
		Title:        title,
		Snippet:      snippet,
		Success:      true,
		QualityScore: 0.8,
		RetrievedAt:  time.Now(),
	}
}

func TestRunExhaustionProducesPartialReport(t *testing.T) {
	store := newMemStore()
	o := New(testConfig(&scriptedCollector{}, store))

	state := o.StartSession("a question no provider can answer")
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Phase != types.PhaseDone {
		t.Fatalf("phase = %s, want done", state.Phase)
	}
	if !state.SourceExhausted {
		t.Fatal("SourceExhausted not set")
	}
	found := false
	for _, r := range state.StopReason {
		if r == "all configured sources exhausted without results" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stop reasons %v missing the exhaustion reason", state.StopReason)
	}
	if state.Report == "" {
		t.Fatal("no report produced for an exhausted session")
	}
	if !strings.Contains(state.Report, "not found") {
		t.Fatalf("report does not explain what was not found:\n%s", state.Report)
	}
}

func TestRunSaturationStopsAfterDebounce(t *testing.T) {
	rich := []types.SourceResult{
		sourceResult("alpha", "https://a/1", "Widget Corp Announces Fusion Reactor", "Widget Corp announced a working compact fusion reactor on Tuesday. The device sustained a reaction for several minutes."),
		sourceResult("beta", "https://b/1", "Fusion Reactor Milestone Reached", "Independent observers confirmed the reactor sustained net positive output during the demonstration event."),
	}
	// Later cycles return only already-known URLs: no new material.
	collector := &scriptedCollector{script: [][]types.SourceResult{rich, rich, rich, rich}}
	store := newMemStore()
	o := New(testConfig(collector, store))

	state := o.StartSession("compact fusion reactor progress")
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Phase != types.PhaseDone {
		t.Fatalf("phase = %s, want done", state.Phase)
	}
	if state.SourceExhausted {
		t.Fatal("saturation run wrongly flagged exhaustion")
	}
	// Cycle 1 is productive; cycles 2 and 3 are saturated, satisfying the
	// 2-cycle debounce.
	if len(state.CycleHistory) != 3 {
		t.Fatalf("ran %d cycles, want 3", len(state.CycleHistory))
	}
	if len(state.StopReason) == 0 || !strings.Contains(state.StopReason[len(state.StopReason)-1], "saturated") {
		t.Fatalf("stop reasons %v do not name saturation", state.StopReason)
	}
	if len(state.Entities) == 0 || len(state.Facts) == 0 {
		t.Fatalf("no knowledge extracted: %d entities, %d facts", len(state.Entities), len(state.Facts))
	}
	if state.Report == "" {
		t.Fatal("no report produced")
	}
}

func TestRunStopRequestSynthesizesEarly(t *testing.T) {
	// An endless supply of fresh results; only Stop can end this session
	// before the cycle cap.
	script := make([][]types.SourceResult, 0, 16)
	for i := 0; i < 16; i++ {
		script = append(script, []types.SourceResult{
			sourceResult("alpha", fmt.Sprintf("https://a/%d", i), fmt.Sprintf("Fresh Discovery Number %d", i), "Researchers described a previously unseen phenomenon in considerable detail here."),
		})
	}
	store := newMemStore()
	o := New(testConfig(&scriptedCollector{script: script}, store))

	state := o.StartSession("endless topic")
	o.Stop()
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Phase != types.PhaseDone {
		t.Fatalf("phase = %s, want done", state.Phase)
	}
	found := false
	for _, r := range state.StopReason {
		if r == "stopped by user request" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stop reasons %v missing the user stop", state.StopReason)
	}
	if state.Report == "" {
		t.Fatal("stopped session produced no report")
	}
}

func TestRunCheckpointsEveryTransition(t *testing.T) {
	store := newMemStore()
	o := New(testConfig(&scriptedCollector{}, store))

	o.StartSession("q")
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	store.mu.Lock()
	saves := store.saves
	store.mu.Unlock()
	// clarify, plan, collect(exhausted)->evaluate, synthesize, done: at
	// least one checkpoint per transition.
	if saves < 5 {
		t.Fatalf("only %d checkpoints saved, want one per transition", saves)
	}
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	store := newMemStore()
	saved := types.ResearchState{
		SessionID:         "resume-me",
		Phase:             types.PhaseCollect,
		Query:             "resumable question",
		Domain:            "general",
		PrivacyMode:       types.PrivacyLocalOnly,
		PlannedQueries:    []string{"resumable question"},
		PlannedCategories: []string{"web"},
		Cycle:             0,
		Approved:          true,
	}
	if err := store.SaveCheckpoint(&saved); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	o := New(testConfig(&scriptedCollector{}, store))
	state, err := o.ResumeSession("resume-me")
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if state.Phase != types.PhaseCollect {
		t.Fatalf("resumed phase = %s, want collect", state.Phase)
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase != types.PhaseDone {
		t.Fatalf("phase = %s after resume, want done", state.Phase)
	}
	if state.SessionID != "resume-me" {
		t.Fatalf("session id changed on resume: %s", state.SessionID)
	}
}

func TestApprovalGateBlocksUntilApproved(t *testing.T) {
	cfg := testConfig(&scriptedCollector{}, newMemStore())
	cfg.AutoApprove = false
	o := New(cfg)

	o.StartSession("gated question")

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	// The run must park in the approval phase rather than collecting.
	deadline := time.After(2 * time.Second)
	for o.GetProgress().Phase != types.PhaseAwaitApproval {
		select {
		case err := <-done:
			t.Fatalf("run finished without approval: %v", err)
		case <-deadline:
			t.Fatalf("never reached the approval phase (phase=%s)", o.GetProgress().Phase)
		case <-time.After(5 * time.Millisecond):
		}
	}

	o.Approve()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after approval")
	}
}

func TestApprovalGateOutlastsPhaseTimeout(t *testing.T) {
	cfg := testConfig(&scriptedCollector{}, newMemStore())
	cfg.AutoApprove = false
	cfg.PhaseTimeout = 20 * time.Millisecond
	o := New(cfg)

	o.StartSession("slow approver")

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for o.GetProgress().Phase != types.PhaseAwaitApproval {
		select {
		case err := <-done:
			t.Fatalf("run finished without approval: %v", err)
		case <-deadline:
			t.Fatalf("never reached the approval phase (phase=%s)", o.GetProgress().Phase)
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Wait well past the phase budget. The gate must still be parked, not
	// degraded into a timed-out synthesis.
	time.Sleep(100 * time.Millisecond)
	if got := o.GetProgress().Phase; got != types.PhaseAwaitApproval {
		t.Fatalf("approval gate gave up under the phase budget: phase=%s", got)
	}

	o.Approve()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after approval")
	}
	if reasons := o.GetProgress().StopReason; strings.Contains(reasons, "await_approval") {
		t.Fatalf("approval phase recorded a failure: %q", reasons)
	}
}

func TestPauseHaltsPhaseTransitions(t *testing.T) {
	script := make([][]types.SourceResult, 0, 16)
	for i := 0; i < 16; i++ {
		script = append(script, []types.SourceResult{
			sourceResult("alpha", fmt.Sprintf("https://a/%d", i), "Title Here", "A sentence long enough to be treated as a candidate factual statement."),
		})
	}
	o := New(testConfig(&scriptedCollector{script: script}, newMemStore()))

	o.StartSession("pausable")
	o.Pause()

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	if p := o.GetProgress().Phase; p != types.PhaseClarify {
		t.Fatalf("paused run advanced to %s", p)
	}

	o.Resume()
	o.Stop() // end quickly once resumed
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

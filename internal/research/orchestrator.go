// Package research runs the deep-research pipeline: a phase state machine
// that plans queries, collects from providers, extracts entities and facts,
// and stops either on saturation or on source exhaustion.
package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"deepscout/internal/logging"
	"deepscout/internal/provider"
	"deepscout/internal/router"
	"deepscout/internal/saturation"
	"deepscout/internal/types"
)

// Collector fans one query out to providers and merges results.
type Collector interface {
	Collect(ctx context.Context, query, domain string, providers []string, maxResults int) ([]types.SourceResult, error)
}

// LLM is the slice of the model router the pipeline consumes.
type LLM interface {
	Complete(ctx context.Context, messages []router.Message, complexity types.Complexity, mode types.PrivacyMode) (string, router.ModelRecommendation, error)
	RecommendPrivacyMode(query string) (types.PrivacyMode, string)
}

// Memory is the slice of the persistent store the pipeline consumes.
type Memory interface {
	SaveCheckpoint(state *types.ResearchState) error
	LoadCheckpoint(sessionID string) (*types.ResearchState, error)
	StoreDocument(sessionID string, r types.SourceResult) error
	RecordSourceOutcome(provider, domain string, success bool, quality float64) error
}

// Config holds everything the orchestrator needs to run a session.
type Config struct {
	Collector Collector
	Registry  *provider.Registry
	LLM       LLM
	Memory    Memory
	Evaluator *saturation.Evaluator

	PrivacyMode        types.PrivacyMode
	MaxResultsPerCycle int
	AutoApprove        bool
	PhaseTimeout       time.Duration

	ProgressChan chan types.Progress
	EventChan    chan types.Event
}

// transitionFunc executes one phase and names the next.
type transitionFunc func(ctx context.Context) (types.Phase, error)

// Orchestrator drives one research session through the phase state machine.
// The state is checkpointed after every transition so a crashed or stopped
// session resumes from its last completed phase.
type Orchestrator struct {
	mu sync.RWMutex

	cfg   Config
	state *types.ResearchState

	transitions map[types.Phase]transitionFunc

	isRunning     bool
	isPaused      bool
	stopRequested bool
	cancelFunc    context.CancelFunc
	approveCh     chan struct{}

	// In-flight cycle scratch, reset each collect phase.
	cycleResults     []types.SourceResult
	cycleDuplicates  int
	cycleFetched     int
	cycleNewEntities int
	cycleNewFacts    int
}

// New creates an orchestrator for a fresh session.
func New(cfg Config) *Orchestrator {
	if cfg.MaxResultsPerCycle <= 0 {
		cfg.MaxResultsPerCycle = 30
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 5 * time.Minute
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = saturation.New(saturation.DefaultConfig())
	}
	o := &Orchestrator{
		cfg:       cfg,
		approveCh: make(chan struct{}, 1),
	}
	o.transitions = map[types.Phase]transitionFunc{
		types.PhaseClarify:       o.runClarify,
		types.PhasePlan:          o.runPlan,
		types.PhaseAwaitApproval: o.runAwaitApproval,
		types.PhaseCollect:       o.runCollect,
		types.PhaseProcess:       o.runProcess,
		types.PhaseAnalyze:       o.runAnalyze,
		types.PhaseEvaluate:      o.runEvaluate,
		types.PhaseSynthesize:    o.runSynthesize,
	}
	return o
}

// StartSession initializes fresh state for a query.
func (o *Orchestrator) StartSession(query string) *types.ResearchState {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	o.state = &types.ResearchState{
		SessionID:   uuid.NewString(),
		Phase:       types.PhaseClarify,
		Query:       query,
		PrivacyMode: o.cfg.PrivacyMode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	logging.Session("session %s started: %q (privacy=%s)", o.state.SessionID, query, o.cfg.PrivacyMode)
	return o.state
}

// ResumeSession restores a checkpointed session. Execution continues from
// the phase recorded in the checkpoint.
func (o *Orchestrator) ResumeSession(sessionID string) (*types.ResearchState, error) {
	state, err := o.cfg.Memory.LoadCheckpoint(sessionID)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	logging.Session("session %s resumed at phase %s (cycle %d)", state.SessionID, state.Phase, state.Cycle)
	return state, nil
}

// Run executes the state machine until the session reaches its terminal
// phase or the context ends. StartSession or ResumeSession must have been
// called first.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state == nil {
		o.mu.Unlock()
		return fmt.Errorf("no session: call StartSession or ResumeSession first")
	}
	if o.isRunning {
		o.mu.Unlock()
		return fmt.Errorf("session %s already running", o.state.SessionID)
	}
	o.isRunning = true
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.isRunning = false
		o.cancelFunc = nil
		o.mu.Unlock()
		cancel()
	}()

	for {
		o.mu.RLock()
		phase := o.state.Phase
		paused := o.isPaused
		stopReq := o.stopRequested
		o.mu.RUnlock()

		if phase == types.PhaseDone {
			o.emitEvent(types.EventDone, "", "research complete")
			return nil
		}

		if paused {
			select {
			case <-runCtx.Done():
				return o.checkpointOnExit(runCtx.Err())
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		// A stop request short-circuits straight to synthesis so the user
		// still gets a report over whatever was collected.
		if stopReq && phase != types.PhaseSynthesize {
			o.mu.Lock()
			o.state.AppendStopReason("stopped by user request")
			o.mu.Unlock()
			o.transition(types.PhaseSynthesize)
			continue
		}

		fn, ok := o.transitions[phase]
		if !ok {
			return fmt.Errorf("no transition for phase %q", phase)
		}

		// Approval waits on a human, so only the session context bounds it.
		// Every other phase runs under the phase budget.
		phaseCtx, phaseCancel := runCtx, context.CancelFunc(func() {})
		if phase != types.PhaseAwaitApproval {
			phaseCtx, phaseCancel = context.WithTimeout(runCtx, o.cfg.PhaseTimeout)
		}
		next, err := fn(phaseCtx)
		phaseCancel()

		if err != nil {
			if runCtx.Err() != nil {
				return o.checkpointOnExit(runCtx.Err())
			}
			logging.Pipeline("phase %s failed: %v", phase, err)
			o.emitEvent(types.EventError, "", fmt.Sprintf("phase %s: %v", phase, err))
			// Phase failures degrade to synthesis rather than losing the
			// session: partial data still yields a partial report.
			o.mu.Lock()
			o.state.AppendStopReason(fmt.Sprintf("phase %s failed: %v", phase, err))
			o.mu.Unlock()
			next = types.PhaseSynthesize
			if phase == types.PhaseSynthesize {
				o.transition(types.PhaseDone)
				return fmt.Errorf("synthesis failed: %w", err)
			}
		}

		o.transition(next)
	}
}

// transition moves to the next phase and checkpoints.
func (o *Orchestrator) transition(next types.Phase) {
	o.mu.Lock()
	prev := o.state.Phase
	o.state.Phase = next
	o.state.UpdatedAt = time.Now()
	state := o.state
	o.mu.Unlock()

	logging.Pipeline("session %s: %s -> %s", state.SessionID, prev, next)
	if err := o.cfg.Memory.SaveCheckpoint(state); err != nil {
		logging.Pipeline("checkpoint failed after %s: %v", next, err)
	}
	o.emitProgress()
}

// checkpointOnExit saves state before surfacing a context error.
func (o *Orchestrator) checkpointOnExit(cause error) error {
	o.mu.RLock()
	state := o.state
	o.mu.RUnlock()
	if err := o.cfg.Memory.SaveCheckpoint(state); err != nil {
		logging.Pipeline("checkpoint on exit failed: %v", err)
	}
	return cause
}

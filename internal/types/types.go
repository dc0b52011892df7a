// Package types holds the shared vocabulary of the deepscout research
// engine: session state, collected sources, extracted knowledge, and the
// progress/event surface consumed by clients.
package types

import "time"

// PrivacyMode constrains which class of model may process a session's data.
type PrivacyMode string

const (
	// PrivacyLocalOnly restricts every model call to the local tier for the
	// lifetime of the session. There is no downgrade path out of this mode.
	PrivacyLocalOnly PrivacyMode = "local_only"
	// PrivacyCloudAllowed permits cloud-tier models where the routing table
	// prefers them.
	PrivacyCloudAllowed PrivacyMode = "cloud_allowed"
)

// Complexity classifies how demanding a model task is. It selects a
// preference row in the router table, never a concrete model.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// SourceResult records one retrieved search hit. Immutable once recorded.
type SourceResult struct {
	Provider     string    `json:"provider"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	Success      bool      `json:"success"`
	QualityScore float64   `json:"quality_score"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// Entity is a named thing discovered during research.
type Entity struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Mentions int    `json:"mentions"`
}

// Fact is a statement extracted from one or more sources.
type Fact struct {
	Statement      string   `json:"statement"`
	Sources        []string `json:"sources"`
	Confidence     float64  `json:"confidence"`
	Verified       bool     `json:"verified"`
	Contradictions []string `json:"contradictions,omitempty"`
}

// SaturationMetrics captures the growth/coverage measurements of one
// collection cycle.
type SaturationMetrics struct {
	NewEntitiesRatio    float64 `json:"new_entities_ratio"`
	NewFactsRatio       float64 `json:"new_facts_ratio"`
	CitationCircularity float64 `json:"citation_circularity"`
	SourceCoverage      float64 `json:"source_coverage"`
}

// CycleRecord is one entry of the append-only cycle history. Keeping the
// per-cycle metrics here means the debounced stop check never recomputes
// anything from raw state.
type CycleRecord struct {
	Cycle          int               `json:"cycle"`
	NewEntities    int               `json:"new_entities"`
	NewFacts       int               `json:"new_facts"`
	TotalEntities  int               `json:"total_entities"`
	TotalFacts     int               `json:"total_facts"`
	SourcesQueried int               `json:"sources_queried"`
	Metrics        SaturationMetrics `json:"metrics"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// Phase identifies a step of the research pipeline.
type Phase string

const (
	PhaseClarify       Phase = "clarify"
	PhasePlan          Phase = "plan"
	PhaseAwaitApproval Phase = "await_approval"
	PhaseCollect       Phase = "collect"
	PhaseProcess       Phase = "process"
	PhaseAnalyze       Phase = "analyze"
	PhaseEvaluate      Phase = "evaluate"
	PhaseSynthesize    Phase = "synthesize"
	PhaseDone          Phase = "done"
)

// ResearchState is the full mutable state of one research session. Only the
// code executing the current phase mutates it; it is checkpointed after
// every phase transition.
type ResearchState struct {
	SessionID   string      `json:"session_id"`
	Phase       Phase       `json:"phase"`
	Query       string      `json:"query"`
	Domain      string      `json:"domain"`
	PrivacyMode PrivacyMode `json:"privacy_mode"`

	PlannedQueries    []string `json:"planned_queries,omitempty"`
	PlannedCategories []string `json:"planned_categories,omitempty"`
	QueriedCategories []string `json:"queried_categories,omitempty"`

	Entities      []Entity       `json:"entities"`
	Facts         []Fact         `json:"facts"`
	SourceResults []SourceResult `json:"source_results"`

	// CycleHistory is append-only.
	CycleHistory []CycleRecord     `json:"cycle_history"`
	Saturation   SaturationMetrics `json:"saturation"`

	Cycle           int      `json:"cycle"`
	SourceExhausted bool     `json:"source_exhausted"`
	Approved        bool     `json:"approved"`
	StopReason      []string `json:"stop_reason,omitempty"`
	Report          string   `json:"report,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnownURLs returns the set of URLs already recorded on the state.
func (s *ResearchState) KnownURLs() map[string]bool {
	known := make(map[string]bool, len(s.SourceResults))
	for _, r := range s.SourceResults {
		known[r.URL] = true
	}
	return known
}

// AppendStopReason records a plain-language stop decision for audit.
func (s *ResearchState) AppendStopReason(reason string) {
	if reason == "" {
		return
	}
	s.StopReason = append(s.StopReason, reason)
}

// Progress is the snapshot exposed to polling clients.
type Progress struct {
	SessionID      string            `json:"session_id"`
	Phase          Phase             `json:"phase"`
	Cycle          int               `json:"cycle"`
	SourcesQueried int               `json:"sources_queried"`
	EntitiesFound  int               `json:"entities_found"`
	FactsExtracted int               `json:"facts_extracted"`
	Saturation     SaturationMetrics `json:"saturation"`
	StopReason     string            `json:"stop_reason,omitempty"`
}

// EventType discriminates pushed stream events.
type EventType string

const (
	EventToken     EventType = "token"
	EventModelInfo EventType = "model_info"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one discrete push-stream message. Each event carries only the
// fields relevant to its type; delivery is at-least-once and clients must
// render snapshots idempotently.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Token     string    `json:"token,omitempty"`
	Model     string    `json:"model,omitempty"`
	Message   string    `json:"message,omitempty"`
}

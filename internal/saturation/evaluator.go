// Package saturation computes growth/coverage metrics per collection cycle
// and decides when further cycles stop paying for themselves.
package saturation

import (
	"fmt"

	"deepscout/internal/logging"
	"deepscout/internal/types"
)

// Config holds the stopping thresholds.
type Config struct {
	EntityRatioThreshold float64 // new-entity growth below this counts as saturated
	FactRatioThreshold   float64 // new-fact growth below this counts as saturated
	CoverageThreshold    float64 // planned-category coverage required to stop
	// DebounceCycles is how many consecutive saturated cycles are required
	// before stopping, so one unlucky cycle cannot end a session.
	DebounceCycles int
	// MaxCycles is the hard cap regardless of saturation.
	MaxCycles int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		EntityRatioThreshold: 0.10,
		FactRatioThreshold:   0.10,
		CoverageThreshold:    0.85,
		DebounceCycles:       2,
		MaxCycles:            8,
	}
}

// Evaluator applies the saturation stopping rule.
type Evaluator struct {
	cfg Config
}

// New creates an evaluator, normalizing degenerate config values.
func New(cfg Config) *Evaluator {
	if cfg.DebounceCycles < 1 {
		cfg.DebounceCycles = 2
	}
	if cfg.MaxCycles < 1 {
		cfg.MaxCycles = DefaultConfig().MaxCycles
	}
	return &Evaluator{cfg: cfg}
}

// CycleInput carries the raw counts of one completed collection cycle.
type CycleInput struct {
	NewEntities       int
	NewFacts          int
	TotalEntities     int // totals before this cycle's additions
	TotalFacts        int
	CitationsSeen     int // this cycle's citations pointing at already-known sources
	CitationsTotal    int
	CategoriesQueried int
	CategoriesPlanned int
}

// Compute derives the four saturation metrics from raw cycle counts.
func Compute(in CycleInput) types.SaturationMetrics {
	m := types.SaturationMetrics{
		NewEntitiesRatio: float64(in.NewEntities) / float64(max(1, in.TotalEntities)),
		NewFactsRatio:    float64(in.NewFacts) / float64(max(1, in.TotalFacts)),
	}
	if in.CitationsTotal > 0 {
		m.CitationCircularity = float64(in.CitationsSeen) / float64(in.CitationsTotal)
	}
	if in.CategoriesPlanned > 0 {
		m.SourceCoverage = float64(in.CategoriesQueried) / float64(in.CategoriesPlanned)
	}
	return m
}

// saturated reports whether one cycle's metrics meet the stop condition.
func (e *Evaluator) saturated(m types.SaturationMetrics) bool {
	return m.NewEntitiesRatio < e.cfg.EntityRatioThreshold &&
		m.NewFactsRatio < e.cfg.FactRatioThreshold &&
		m.SourceCoverage >= e.cfg.CoverageThreshold
}

// ShouldStop decides whether collection continues, given the append-only
// cycle history (most recent record last). Every stop carries a
// plain-language reason for the audit trail.
func (e *Evaluator) ShouldStop(history []types.CycleRecord) (bool, string) {
	n := len(history)
	if n == 0 {
		return false, "no cycles completed yet"
	}

	if n >= e.cfg.MaxCycles {
		reason := fmt.Sprintf("hard cycle cap of %d reached", e.cfg.MaxCycles)
		logging.Saturation("stopping: %s", reason)
		return true, reason
	}

	if n < e.cfg.DebounceCycles {
		return false, fmt.Sprintf("only %d of %d cycles available for saturation check", n, e.cfg.DebounceCycles)
	}

	for i := n - e.cfg.DebounceCycles; i < n; i++ {
		if !e.saturated(history[i].Metrics) {
			m := history[n-1].Metrics
			return false, fmt.Sprintf(
				"still productive: new entities %.0f%%, new facts %.0f%%, coverage %.0f%%",
				m.NewEntitiesRatio*100, m.NewFactsRatio*100, m.SourceCoverage*100)
		}
	}

	reason := fmt.Sprintf(
		"research saturated for %d consecutive cycles: entity growth < %.0f%%, fact growth < %.0f%%, source coverage >= %.0f%%",
		e.cfg.DebounceCycles,
		e.cfg.EntityRatioThreshold*100, e.cfg.FactRatioThreshold*100, e.cfg.CoverageThreshold*100)
	logging.Saturation("stopping: %s", reason)
	return true, reason
}

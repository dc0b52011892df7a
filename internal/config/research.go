package config

import "fmt"

// ResearchConfig configures the orchestration loop and the saturation
// stopping rule.
type ResearchConfig struct {
	// MaxCycles is the hard cap on collection cycles per session.
	MaxCycles int `yaml:"max_cycles"`

	// SaturationDebounceCycles is how many consecutive saturated cycles are
	// required before stopping. Defaults to 2.
	SaturationDebounceCycles int `yaml:"saturation_debounce_cycles"`

	// Saturation thresholds.
	EntityRatioThreshold float64 `yaml:"entity_ratio_threshold"`
	FactRatioThreshold   float64 `yaml:"fact_ratio_threshold"`
	CoverageThreshold    float64 `yaml:"coverage_threshold"`

	// MaxResultsPerCycle caps merged results handed to PROCESS each cycle.
	MaxResultsPerCycle int `yaml:"max_results_per_cycle"`

	// AutoApprove skips the human approval gate after planning.
	AutoApprove bool `yaml:"auto_approve"`

	// PhaseTimeout bounds one phase transition, e.g. "5m". Individual
	// provider calls are bounded separately and more tightly.
	PhaseTimeout string `yaml:"phase_timeout"`
}

// DefaultResearchConfig returns the stock research loop settings.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		MaxCycles:                8,
		SaturationDebounceCycles: 2,
		EntityRatioThreshold:     0.10,
		FactRatioThreshold:       0.10,
		CoverageThreshold:        0.85,
		MaxResultsPerCycle:       30,
		AutoApprove:              true,
		PhaseTimeout:             "5m",
	}
}

// Validate checks the research configuration.
func (c ResearchConfig) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be >= 1")
	}
	if c.SaturationDebounceCycles < 1 {
		return fmt.Errorf("saturation_debounce_cycles must be >= 1")
	}
	if c.EntityRatioThreshold <= 0 || c.EntityRatioThreshold >= 1 {
		return fmt.Errorf("entity_ratio_threshold must be in (0,1)")
	}
	if c.FactRatioThreshold <= 0 || c.FactRatioThreshold >= 1 {
		return fmt.Errorf("fact_ratio_threshold must be in (0,1)")
	}
	if c.CoverageThreshold <= 0 || c.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold must be in (0,1]")
	}
	return nil
}

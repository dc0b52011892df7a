package router

import (
	"fmt"

	"deepscout/internal/types"
)

// PreferenceTable maps (privacyMode, complexity) to an ordered list of model
// tiers. Fallback between tiers is permitted only along the edges a row
// declares; a cloud fallback under LOCAL_ONLY is expressed by cloud tiers
// being absent from those rows, not by a runtime check per call site.
type PreferenceTable map[types.PrivacyMode]map[types.Complexity][]Tier

// DefaultPreferences returns the stock routing table.
func DefaultPreferences() PreferenceTable {
	return PreferenceTable{
		types.PrivacyLocalOnly: {
			types.ComplexityLow:    {TierLocalFast},
			types.ComplexityMedium: {TierLocalPowerful, TierLocalFast},
			types.ComplexityHigh:   {TierLocalPowerful, TierLocalFast},
		},
		types.PrivacyCloudAllowed: {
			types.ComplexityLow:    {TierLocalFast, TierCloudFast},
			types.ComplexityMedium: {TierLocalPowerful, TierCloudFast},
			types.ComplexityHigh:   {TierCloudBest, TierLocalPowerful},
		},
	}
}

// Validate rejects tables that would violate the privacy invariant by
// construction. It runs once at router build time, the single boundary
// where cloud entries under LOCAL_ONLY are rejected.
func (t PreferenceTable) Validate() error {
	local, ok := t[types.PrivacyLocalOnly]
	if !ok {
		return fmt.Errorf("preference table missing %s rows", types.PrivacyLocalOnly)
	}
	for complexity, tiers := range local {
		for _, tier := range tiers {
			if !tier.Local() {
				return fmt.Errorf("preference table declares cloud tier %s under %s/%s",
					tier, types.PrivacyLocalOnly, complexity)
			}
		}
	}
	return nil
}

// tiersFor returns the preference row, falling back to medium complexity
// when the row is missing.
func (t PreferenceTable) tiersFor(mode types.PrivacyMode, complexity types.Complexity) []Tier {
	rows, ok := t[mode]
	if !ok {
		return nil
	}
	if tiers, ok := rows[complexity]; ok {
		return tiers
	}
	return rows[types.ComplexityMedium]
}

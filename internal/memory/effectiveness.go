package memory

import (
	"database/sql"
	"fmt"

	"deepscout/internal/logging"
)

// emaAlpha controls how fast effectiveness scores track recent outcomes.
const emaAlpha = 0.3

// defaultEffectiveness is the score assumed for a provider never seen before.
const defaultEffectiveness = 0.5

// RecordSourceOutcome folds one provider call outcome into its learned
// effectiveness score for a research domain. A successful call contributes
// its quality score; a failed call contributes zero.
func (s *Store) RecordSourceOutcome(provider, domain string, success bool, quality float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := 0.0
	if success {
		result = quality
	}

	var old float64
	err := s.db.QueryRow(`
		SELECT score FROM source_effectiveness
		WHERE provider = ? AND domain = ?`, provider, domain).Scan(&old)
	if err == sql.ErrNoRows {
		old = defaultEffectiveness
	} else if err != nil {
		return fmt.Errorf("failed to read effectiveness: %w", err)
	}

	updated := emaAlpha*result + (1-emaAlpha)*old
	_, err = s.db.Exec(`
		INSERT INTO source_effectiveness (provider, domain, score, samples, updated_at)
		VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(provider, domain) DO UPDATE SET
			score = ?,
			samples = samples + 1,
			updated_at = CURRENT_TIMESTAMP`,
		provider, domain, updated, updated)
	if err != nil {
		return fmt.Errorf("failed to update effectiveness: %w", err)
	}

	logging.MemoryDebug("effectiveness %s/%s: %.3f -> %.3f (success=%v quality=%.2f)",
		provider, domain, old, updated, success, quality)
	return nil
}

// GetSourceEffectiveness returns the learned score for a provider within a
// domain, falling back to the provider's all-domain average and then to the
// neutral default when there is no history at all.
func (s *Store) GetSourceEffectiveness(provider, domain string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var score float64
	err := s.db.QueryRow(`
		SELECT score FROM source_effectiveness
		WHERE provider = ? AND domain = ?`, provider, domain).Scan(&score)
	if err == nil {
		return score
	}

	err = s.db.QueryRow(`
		SELECT AVG(score) FROM source_effectiveness
		WHERE provider = ?`, provider).Scan(&score)
	if err != nil || score == 0 {
		return defaultEffectiveness
	}
	return score
}

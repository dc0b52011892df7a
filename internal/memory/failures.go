package memory

import (
	"fmt"
)

// AccessFailure records a URL that could not be retrieved.
type AccessFailure struct {
	URL        string
	Source     string
	ErrorType  string
	Message    string
	RetryCount int
}

// RecordAccessFailure stores a failed retrieval. Repeated failures for the
// same URL increment its retry count on the single existing row rather than
// inserting duplicates.
func (s *Store) RecordAccessFailure(url, source, errorType, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO access_failures (url, source, error_type, message)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			retry_count = retry_count + 1,
			error_type = excluded.error_type,
			message = excluded.message,
			last_seen = CURRENT_TIMESTAMP`,
		url, source, errorType, message)
	if err != nil {
		return fmt.Errorf("failed to record access failure: %w", err)
	}
	return nil
}

// IsKnownFailure reports whether a URL previously failed retrieval, so the
// pipeline can skip it instead of burning a fetch on a dead link.
func (s *Store) IsKnownFailure(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM access_failures WHERE url = ?`, url).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// GetAccessFailure returns the stored failure record for a URL, if any.
func (s *Store) GetAccessFailure(url string) (*AccessFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f AccessFailure
	err := s.db.QueryRow(`
		SELECT url, source, error_type, message, retry_count
		FROM access_failures WHERE url = ?`, url).
		Scan(&f.URL, &f.Source, &f.ErrorType, &f.Message, &f.RetryCount)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"deepscout/internal/types"
)

// Document is a stored research artifact.
type Document struct {
	ID           int64
	SessionID    string
	URL          string
	Title        string
	Content      string
	Provider     string
	QualityScore float64
	CreatedAt    time.Time
}

// StoreDocument persists a collected result. Re-storing the same URL within a
// session updates the row instead of duplicating it.
func (s *Store) StoreDocument(sessionID string, r types.SourceResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO documents (session_id, url, title, content, provider, quality_score)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			quality_score = excluded.quality_score`,
		sessionID, r.URL, r.Title, r.Snippet, r.Provider, r.QualityScore)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// ScoredDocument pairs a document with its search relevance.
type ScoredDocument struct {
	Document
	Score float64
}

// SearchSimilar returns the session's documents most relevant to the query.
// Relevance blends a content-similarity score with whole-word keyword
// overlap; vector indexing lives outside this store.
func (s *Store) SearchSimilar(sessionID, query string, limit int) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, url, title, content, provider, quality_score, created_at
		FROM documents WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	terms := queryTerms(query)
	var scored []ScoredDocument
	for rows.Next() {
		var d Document
		d.SessionID = sessionID
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.Content, &d.Provider, &d.QualityScore, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		score := 0.6*contentSimilarity(terms, d.Title+" "+d.Content) + 0.4*keywordOverlap(terms, d.Title)
		if score > 0 {
			scored = append(scored, ScoredDocument{Document: d, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SessionDocuments returns every stored document for a session.
func (s *Store) SessionDocuments(sessionID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, url, title, content, provider, quality_score, created_at
		FROM documents WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		d.SessionID = sessionID
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.Content, &d.Provider, &d.QualityScore, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// queryTerms lowercases and splits a query, dropping short stop-ish tokens.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:"'()?!`)
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// contentSimilarity is the fraction of query terms found in the text.
func contentSimilarity(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// keywordOverlap is like contentSimilarity but over discrete words, so a
// title matching whole terms outranks incidental substring hits.
func keywordOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, `.,;:"'()?!`)] = true
	}
	hits := 0
	for _, t := range terms {
		if words[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

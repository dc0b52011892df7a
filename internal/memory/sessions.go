package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"deepscout/internal/types"
)

// SessionInfo summarizes a checkpointed session for listing.
type SessionInfo struct {
	SessionID string
	Query     string
	Phase     types.Phase
	UpdatedAt time.Time
}

// SaveCheckpoint persists the full session state. Each session keeps exactly
// one checkpoint row, overwritten on every phase transition.
func (s *Store) SaveCheckpoint(state *types.ResearchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints (session_id, query, phase, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			query = excluded.query,
			phase = excluded.phase,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`,
		state.SessionID, state.Query, string(state.Phase), string(blob))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores a session's state by ID.
func (s *Store) LoadCheckpoint(sessionID string) (*types.ResearchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRow(`SELECT state FROM checkpoints WHERE session_id = ?`, sessionID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no checkpoint for session %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state types.ResearchState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// ListSessions returns all checkpointed sessions, most recently updated first.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT session_id, query, phase, updated_at
		FROM checkpoints ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var phase string
		if err := rows.Scan(&info.SessionID, &info.Query, &phase, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		info.Phase = types.Phase(phase)
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session's checkpoint and documents.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM documents WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

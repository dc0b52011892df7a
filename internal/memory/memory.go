// Package memory persists research artifacts across sessions: collected
// documents, per-source effectiveness scores, known access failures, and
// session checkpoints.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"deepscout/internal/logging"
)

// Store is the SQLite-backed research memory.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New opens (or creates) the database at the given path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.MemoryDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.MemoryDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Memory("opened research memory at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	// Documents are searched by term overlap; vector indexing lives outside
	// this store.
	documentsTable := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		provider TEXT,
		quality_score REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, url)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id);`

	effectivenessTable := `
	CREATE TABLE IF NOT EXISTS source_effectiveness (
		provider TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		samples INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (provider, domain)
	);`

	failuresTable := `
	CREATE TABLE IF NOT EXISTS access_failures (
		url TEXT PRIMARY KEY,
		source TEXT,
		error_type TEXT,
		message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 1,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	checkpointsTable := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		phase TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	for _, stmt := range []string{documentsTable, effectivenessTable, failuresTable, checkpointsTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

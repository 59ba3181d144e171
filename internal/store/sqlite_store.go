// Package store provides SQLite-backed persistence for the session
// collection. The whole collection is saved as one opaque versioned blob;
// callers treat loaded bytes as untrusted and run them through
// session.NormalizeCollection before use.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Storer is the persistence contract the board service depends on. Save
// failures are non-fatal to callers: the in-memory state stays
// authoritative.
type Storer interface {
	// Load returns the persisted blob, or nil when nothing was saved yet.
	Load() ([]byte, error)

	// Save replaces the persisted blob.
	Save(raw []byte) error

	Close() error
}

// SQLiteStore is the SQLite-backed blob store.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// schema holds the single-row blob table. The CHECK pins the row id so the
// blob can only ever be replaced, never duplicated.
const schema = `
CREATE TABLE IF NOT EXISTS session_blob (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload BLOB NOT NULL,
    saved_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates an in-memory store, useful for tests.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the saved session blob, or nil when absent.
func (s *SQLiteStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM session_blob WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load failed: %w", err)
	}
	return payload, nil
}

// Save replaces the session blob.
func (s *SQLiteStore) Save(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO session_blob (id, payload, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, raw, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

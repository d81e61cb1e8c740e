// Package store provides a SQLite-backed history of answered questions. Each
// turn records the question, the cleaned answer, the model that produced it,
// and the passages it was grounded on, so operators can audit what the
// assistant told users.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/vetrag-go/internal/rag"
)

// Turn is one answered question.
type Turn struct {
	// ID is a random UUID assigned by Append when empty.
	ID string `json:"id"`
	// Surface names where the question came from: cli, http, or mcp.
	Surface string `json:"surface"`
	// Question is the user's question as submitted.
	Question string `json:"question"`
	// Answer is the cleaned model answer.
	Answer string `json:"answer"`
	// Model is the chat model that produced Answer.
	Model string `json:"model"`
	// Sources are the retrieved passages forwarded as context.
	Sources []rag.Result `json:"sources"`
	// CreatedAt is when the turn was persisted. Append sets it when zero.
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists and lists answered questions. Implementations must
// be safe for concurrent use.
type HistoryStore interface {
	// Append persists a turn, filling in ID and CreatedAt when unset.
	Append(ctx context.Context, turn *Turn) error
	// Recent returns up to n turns, newest first.
	Recent(ctx context.Context, n int) ([]Turn, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.vetrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".vetrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS turns (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL UNIQUE,
    surface      TEXT    NOT NULL,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    model        TEXT    NOT NULL,
    sources      TEXT    NOT NULL,  -- JSON array of rag.Result
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single turn.
func (s *SQLiteStore) Append(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sources := turn.Sources
	if sources == nil {
		sources = []rag.Result{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}

	const q = `INSERT INTO turns (id, surface, question, answer, model, sources, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		turn.ID, turn.Surface, turn.Question, turn.Answer, turn.Model, string(raw), turn.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Turn, error) {
	const q = `
SELECT id, surface, question, answer, model, sources, created_at
FROM   turns
ORDER  BY created_at DESC, seq DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var raw string
		var ts int64
		if err := rows.Scan(&t.ID, &t.Surface, &t.Question, &t.Answer, &t.Model, &raw, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &t.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources of %s: %w", t.ID, err)
		}
		t.CreatedAt = time.Unix(ts, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return turns, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

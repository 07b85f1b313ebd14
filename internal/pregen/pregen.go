// Package pregen provides a SQLite-backed store of pre-generated improvement
// plans keyed by overall assessment score (0-100). Plans are computed offline
// for every whole-number score, so the serving path can answer most
// improvement-plan requests without an LLM call.
package pregen

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// MaxScore is the upper bound of the score key space.
const MaxScore = 100

// Stats summarizes the coverage of the pre-generated plan store.
type Stats struct {
	// Plans is the number of stored plans.
	Plans int `json:"plans"`
	// Coverage is Plans relative to the 101 possible whole-number scores.
	Coverage float64 `json:"coverage"`
	// UpdatedAt is the most recent plan write, zero when the store is empty.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// PlanStore persists and retrieves pre-generated improvement plans keyed by
// whole-number score. Implementations must be safe for concurrent use.
type PlanStore interface {
	// Get returns the plan for the given score, or ok=false when no plan is
	// stored for it.
	Get(ctx context.Context, score int) (json.RawMessage, bool, error)
	// Put stores (or replaces) the plan for the given score.
	Put(ctx context.Context, score int, plan json.RawMessage) error
	// Stats reports how much of the score key space has plans.
	Stats(ctx context.Context) (Stats, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a PlanStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the pre-generated plan database.
// It resolves to ~/.uxlens/pregen.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("pregen: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".uxlens")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("pregen: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "pregen.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pregen: open %s: %w", path, err)
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
CREATE TABLE IF NOT EXISTS plans (
    score       INTEGER PRIMARY KEY CHECK(score BETWEEN 0 AND 100),
    plan        TEXT    NOT NULL,
    updated_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("pregen: migrate: %w", err)
	}
	return nil
}

// validScore reports whether score is a usable plan key.
func validScore(score int) bool {
	return score >= 0 && score <= MaxScore
}

// Get returns the plan stored for score, or ok=false when none exists.
func (s *SQLiteStore) Get(ctx context.Context, score int) (json.RawMessage, bool, error) {
	if !validScore(score) {
		return nil, false, fmt.Errorf("pregen: score %d out of range [0, %d]", score, MaxScore)
	}

	const q = `SELECT plan FROM plans WHERE score = ?`
	var plan string
	err := s.db.QueryRowContext(ctx, q, score).Scan(&plan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pregen: get score %d: %w", score, err)
	}
	return json.RawMessage(plan), true, nil
}

// Put stores (or replaces) the plan for score.
func (s *SQLiteStore) Put(ctx context.Context, score int, plan json.RawMessage) error {
	if !validScore(score) {
		return fmt.Errorf("pregen: score %d out of range [0, %d]", score, MaxScore)
	}
	if !json.Valid(plan) {
		return fmt.Errorf("pregen: plan for score %d is not valid JSON", score)
	}

	const q = `
INSERT INTO plans (score, plan, updated_at) VALUES (?, ?, ?)
ON CONFLICT(score) DO UPDATE SET plan = excluded.plan, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, score, string(plan), time.Now().Unix()); err != nil {
		return fmt.Errorf("pregen: put score %d: %w", score, err)
	}
	return nil
}

// Stats reports plan count, key-space coverage, and the latest write time.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	const q = `SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM plans`
	var count int
	var latest int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&count, &latest); err != nil {
		return Stats{}, fmt.Errorf("pregen: stats: %w", err)
	}

	st := Stats{
		Plans:    count,
		Coverage: float64(count) / float64(MaxScore+1),
	}
	if latest > 0 {
		st.UpdatedAt = time.Unix(latest, 0)
	}
	return st, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pregen: close: %w", err)
	}
	return nil
}

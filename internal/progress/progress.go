// Package progress remembers which scenarios a learner has stepped through
// to the end, in a small sqlite database.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed scenario.
type Entry struct {
	ScenarioID  string
	Steps       int
	Runs        int
	CompletedAt time.Time
}

// Store handles sqlite storage for completion records.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating progress directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS completed (
		scenario_id  TEXT PRIMARY KEY,
		steps        INTEGER NOT NULL,
		runs         INTEGER NOT NULL DEFAULT 1,
		completed_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// MarkCompleted records a finished run of id. Repeated runs bump the run
// counter and refresh the step count and timestamp.
func (s *Store) MarkCompleted(ctx context.Context, id string, steps int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO completed (scenario_id, steps, runs, completed_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(scenario_id) DO UPDATE SET
			steps = excluded.steps,
			runs = completed.runs + 1,
			completed_at = excluded.completed_at`,
		id, steps, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("marking %s completed: %w", id, err)
	}
	return nil
}

// Completed lists every completed scenario, most recent first.
func (s *Store) Completed(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario_id, steps, runs, completed_at FROM completed ORDER BY completed_at DESC, scenario_id`)
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ScenarioID, &e.Steps, &e.Runs, &ms); err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}
		e.CompletedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// IsCompleted reports whether id has been completed at least once.
func (s *Store) IsCompleted(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed WHERE scenario_id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", id, err)
	}
	return n > 0, nil
}

// Clear forgets all progress.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM completed`); err != nil {
		return fmt.Errorf("clearing progress: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

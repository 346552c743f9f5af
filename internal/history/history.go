// AutomatedFanfic is a fanfiction download/update orchestrator.
// Copyright (C) 2025 AutomatedFanfic contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package history is an optional, durable audit trail recording the
// terminal outcome of every StoryTask for operator review. It never
// re-seeds live pipeline state — ActiveSet, Backlog, and in-flight
// repeat counters are never recovered from it; see spec.md §9's
// decision that retry state does not survive a process restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is the terminal classification recorded for a task.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeAbandon Outcome = "abandon"
)

// Record is one completed task, ready for insertion.
type Record struct {
	URL         string
	Site        string
	LibraryID   string
	Outcome     Outcome
	Message     string
	Repeats     int64
	CompletedAt time.Time
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS task_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		site TEXT NOT NULL,
		library_id TEXT,
		outcome TEXT NOT NULL,
		message TEXT,
		repeats INTEGER NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_history_site ON task_history(site)`,
}

// Store wraps a pure-Go sqlite database holding the audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and
// applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", path, err)
	}

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: migration %d: %w", i, err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts a completed task outcome.
func (s *Store) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_history (url, site, library_id, outcome, message, repeats, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.URL, r.Site, r.LibraryID, string(r.Outcome), r.Message, r.Repeats, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("history: recording %s: %w", r.URL, err)
	}
	return nil
}

// CountBySite returns the number of recorded outcomes for site,
// filtered by outcome.
func (s *Store) CountBySite(ctx context.Context, site string, outcome Outcome) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_history WHERE site = ? AND outcome = ?`,
		site, string(outcome)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("history: counting %s/%s: %w", site, outcome, err)
	}
	return count, nil
}

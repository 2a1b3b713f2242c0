// Package sqlite persists bug records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/logbug/logbug/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS bugs (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	severity          TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	component         TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	first_seen        TEXT NOT NULL,
	last_seen         TEXT NOT NULL,
	frequency         INTEGER NOT NULL DEFAULT 1,
	status            TEXT NOT NULL,
	assigned_to       TEXT NOT NULL DEFAULT '',
	external_issue_id TEXT NOT NULL DEFAULT '',
	stack_trace       TEXT NOT NULL DEFAULT '',
	metadata          TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_bugs_status ON bugs(status);
CREATE INDEX IF NOT EXISTS idx_bugs_severity ON bugs(severity);
`

// Store is a SQLite-backed bug store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and ensures the
// schema. Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if path == ":memory:" {
		dsn = "file::memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and sidesteps
	// writer contention on file databases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveBug inserts or replaces the record for bug.ID.
func (s *Store) SaveBug(ctx context.Context, bug *types.Bug) error {
	metadata, err := json.Marshal(bug.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bugs (id, title, description, severity, category, component,
			created_at, first_seen, last_seen, frequency, status,
			assigned_to, external_issue_id, stack_trace, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			severity = excluded.severity,
			category = excluded.category,
			component = excluded.component,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			frequency = excluded.frequency,
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			external_issue_id = excluded.external_issue_id,
			stack_trace = excluded.stack_trace,
			metadata = excluded.metadata`,
		bug.ID, bug.Title, bug.Description, string(bug.Severity), bug.Category, bug.Component,
		bug.CreatedAt.Format(time.RFC3339Nano), bug.FirstSeen.Format(time.RFC3339Nano),
		bug.LastSeen.Format(time.RFC3339Nano), bug.Frequency, string(bug.Status),
		bug.AssignedTo, bug.ExternalIssueID, bug.StackTrace, string(metadata))
	if err != nil {
		return fmt.Errorf("failed to save bug %s: %w", bug.ID, err)
	}
	return nil
}

// LoadBugs returns every stored bug ordered by creation time.
func (s *Store) LoadBugs(ctx context.Context) ([]*types.Bug, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, severity, category, component,
			created_at, first_seen, last_seen, frequency, status,
			assigned_to, external_issue_id, stack_trace, metadata
		FROM bugs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bugs: %w", err)
	}
	defer rows.Close()

	var bugs []*types.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, bug)
	}
	return bugs, rows.Err()
}

// DeleteBug removes the record. Missing ids are not an error.
func (s *Store) DeleteBug(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bugs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bug %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanBug(rows *sql.Rows) (*types.Bug, error) {
	var bug types.Bug
	var severity, status, createdAt, firstSeen, lastSeen, metadata string

	err := rows.Scan(&bug.ID, &bug.Title, &bug.Description, &severity, &bug.Category,
		&bug.Component, &createdAt, &firstSeen, &lastSeen, &bug.Frequency, &status,
		&bug.AssignedTo, &bug.ExternalIssueID, &bug.StackTrace, &metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to scan bug: %w", err)
	}

	bug.Severity = types.Severity(severity)
	bug.Status = types.Status(status)
	if bug.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", bug.ID, err)
	}
	if bug.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
		return nil, fmt.Errorf("bad first_seen for %s: %w", bug.ID, err)
	}
	if bug.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
		return nil, fmt.Errorf("bad last_seen for %s: %w", bug.ID, err)
	}
	if metadata != "" && metadata != "null" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &bug.Metadata); err != nil {
			return nil, fmt.Errorf("bad metadata for %s: %w", bug.ID, err)
		}
	}
	return &bug, nil
}

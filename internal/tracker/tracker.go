// Package tracker files bugs into an external issue tracker. The file
// tracker is the reference implementation: a local JSON issue list with
// the same surface a hosted tracker integration would have.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/logbug/logbug/internal/types"
)

// Tracker is the external issue tracker surface.
type Tracker interface {
	// CreateIssue files an issue for the bug and returns its tracker id
	CreateIssue(ctx context.Context, bug *types.Bug) (string, error)
	// CloseIssue closes an issue with a comment
	CloseIssue(ctx context.Context, issueID, comment string) error
	// UpdateIssue amends issue fields, typically severity or frequency
	UpdateIssue(ctx context.Context, issueID string, fields map[string]string) error
}

// Issue is one filed tracker issue.
type Issue struct {
	ID        string            `json:"id"`
	BugID     string            `json:"bug_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Severity  string            `json:"severity"`
	State     string            `json:"state"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Comment   string            `json:"comment,omitempty"`
}

// Issue states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// FileTracker stores issues in a local JSON file. Safe for concurrent use.
type FileTracker struct {
	mu     sync.Mutex
	path   string
	nextID int
	issues map[string]*Issue
}

type trackerState struct {
	NextID int      `json:"next_id"`
	Issues []*Issue `json:"issues"`
}

// NewFileTracker opens the tracker state at path, loading existing
// issues if the file exists.
func NewFileTracker(path string) (*FileTracker, error) {
	if path == "" {
		return nil, fmt.Errorf("file tracker requires a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create tracker directory: %w", err)
		}
	}

	t := &FileTracker{path: path, nextID: 1, issues: make(map[string]*Issue)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker state: %w", err)
	}

	var state trackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse tracker state: %w", err)
	}
	if state.NextID > 0 {
		t.nextID = state.NextID
	}
	for _, issue := range state.Issues {
		t.issues[issue.ID] = issue
	}
	return t, nil
}

// CreateIssue files a new open issue for the bug.
func (t *FileTracker) CreateIssue(_ context.Context, bug *types.Bug) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := fmt.Sprintf("LT-%d", t.nextID)
	t.nextID++

	now := time.Now().UTC()
	t.issues[id] = &Issue{
		ID:       id,
		BugID:    bug.ID,
		Title:    bug.Title,
		Body:     bug.Description,
		Severity: string(bug.Severity),
		State:    StateOpen,
		Fields: map[string]string{
			"category":  bug.Category,
			"component": bug.Component,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.persistLocked(); err != nil {
		delete(t.issues, id)
		t.nextID--
		return "", err
	}
	return id, nil
}

// CloseIssue closes the issue with a comment.
func (t *FileTracker) CloseIssue(_ context.Context, issueID, comment string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	issue, ok := t.issues[issueID]
	if !ok {
		return fmt.Errorf("issue not found: %s", issueID)
	}
	issue.State = StateClosed
	issue.Comment = comment
	issue.UpdatedAt = time.Now().UTC()
	return t.persistLocked()
}

// UpdateIssue merges fields into the issue.
func (t *FileTracker) UpdateIssue(_ context.Context, issueID string, fields map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	issue, ok := t.issues[issueID]
	if !ok {
		return fmt.Errorf("issue not found: %s", issueID)
	}
	if issue.Fields == nil {
		issue.Fields = make(map[string]string)
	}
	for k, v := range fields {
		if k == "severity" {
			issue.Severity = v
			continue
		}
		issue.Fields[k] = v
	}
	issue.UpdatedAt = time.Now().UTC()
	return t.persistLocked()
}

// Issues returns all issues, for the CLI and tests.
func (t *FileTracker) Issues() []*Issue {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Issue, 0, len(t.issues))
	for _, issue := range t.issues {
		copied := *issue
		out = append(out, &copied)
	}
	return out
}

// persistLocked writes the full state atomically. Caller holds t.mu.
func (t *FileTracker) persistLocked() error {
	state := trackerState{NextID: t.nextID, Issues: make([]*Issue, 0, len(t.issues))}
	for _, issue := range t.issues {
		state.Issues = append(state.Issues, issue)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write tracker state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace tracker state: %w", err)
	}
	return nil
}

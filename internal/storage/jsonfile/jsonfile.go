// Package jsonfile persists bug records as a single JSON state file,
// written atomically via a temp file and rename.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/logbug/logbug/internal/types"
)

// Store keeps bugs in memory and mirrors every mutation to a JSON file.
// Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	bugs map[string]*types.Bug
}

type stateFile struct {
	Bugs []*types.Bug `json:"bugs"`
}

// New opens the store at path, loading existing state if the file
// exists. The parent directory is created if needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("json store requires a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	s := &Store{path: path, bugs: make(map[string]*types.Bug)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	for _, bug := range state.Bugs {
		s.bugs[bug.ID] = bug
	}
	return s, nil
}

// SaveBug inserts or replaces the record for bug.ID.
func (s *Store) SaveBug(_ context.Context, bug *types.Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bugs[bug.ID] = bug.Clone()
	return s.persistLocked()
}

// LoadBugs returns every stored bug ordered by creation time.
func (s *Store) LoadBugs(_ context.Context) ([]*types.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bugs := make([]*types.Bug, 0, len(s.bugs))
	for _, bug := range s.bugs {
		bugs = append(bugs, bug.Clone())
	}
	sort.Slice(bugs, func(i, j int) bool {
		if !bugs[i].CreatedAt.Equal(bugs[j].CreatedAt) {
			return bugs[i].CreatedAt.Before(bugs[j].CreatedAt)
		}
		return bugs[i].ID < bugs[j].ID
	})
	return bugs, nil
}

// DeleteBug removes the record. Missing ids are not an error.
func (s *Store) DeleteBug(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bugs[id]; !ok {
		return nil
	}
	delete(s.bugs, id)
	return s.persistLocked()
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error {
	return nil
}

// persistLocked writes the full state atomically. Caller holds s.mu.
func (s *Store) persistLocked() error {
	state := stateFile{Bugs: make([]*types.Bug, 0, len(s.bugs))}
	for _, bug := range s.bugs {
		state.Bugs = append(state.Bugs, bug)
	}
	sort.Slice(state.Bugs, func(i, j int) bool { return state.Bugs[i].ID < state.Bugs[j].ID })

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Package storage defines the persistence boundary for bug records and
// the factory that selects a backend. Backends are durable mirrors of
// the in-memory registry: the registry stays authoritative at runtime
// and reloads from the store on startup.
package storage

import (
	"context"
	"fmt"

	"github.com/logbug/logbug/internal/storage/jsonfile"
	"github.com/logbug/logbug/internal/storage/sqlite"
	"github.com/logbug/logbug/internal/types"
)

// BugStore persists bug records. Implementations must be safe for
// concurrent use.
type BugStore interface {
	// SaveBug inserts or replaces the record for bug.ID
	SaveBug(ctx context.Context, bug *types.Bug) error
	// LoadBugs returns every stored bug
	LoadBugs(ctx context.Context) ([]*types.Bug, error)
	// DeleteBug removes the record; deleting a missing id is not an error
	DeleteBug(ctx context.Context, id string) error
	// Close releases backend resources
	Close() error
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Config holds storage configuration
type Config struct {
	// Backend selects the persistence implementation: "sqlite" or "json"
	// Default: "json"
	Backend string
	// Path is the database or state file location
	// Default: ".logbug/bugs.json"
	Path string
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendJSON,
		Path:    ".logbug/bugs.json",
	}
}

// NewStore creates the configured backend.
func NewStore(cfg *Config) (BugStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	switch cfg.Backend {
	case BackendSQLite:
		return sqlite.New(cfg.Path)
	case BackendJSON, "":
		return jsonfile.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// Package registry is the authoritative bug store and the orchestrator
// of the event pipeline: error events are analyzed, deduplicated into
// bug records, escalated when they recur, persisted, filed with the
// issue tracker, and announced through the notifier. The in-memory map
// is the source of truth at runtime; the durable store is a mirror that
// seeds it on startup.
package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/logbug/logbug/internal/analyzer"
	"github.com/logbug/logbug/internal/notify"
	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/storage"
	"github.com/logbug/logbug/internal/tracker"
	"github.com/logbug/logbug/internal/types"
)

// Notifier announces bug-lifecycle events. Satisfied by notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, kind notify.EventKind, bug *types.Bug) error
}

// Config holds registry configuration
type Config struct {
	// EscalationThreshold is the frequency a bug must exceed before its
	// severity is raised.
	// Default: 5
	EscalationThreshold int
	// EscalationAfter raises severity for bugs that keep recurring this
	// long after they were first seen.
	// Default: 24 hours
	EscalationAfter time.Duration
	// RetentionPeriod is how long resolved bugs are kept after their
	// last occurrence.
	// Default: 30 days
	RetentionPeriod time.Duration
	// DefaultOwner is assigned when no component owner matches
	// Default: "unassigned"
	DefaultOwner string
	// ComponentOwners maps component names to owners
	ComponentOwners map[string]string
	// TrackerMinSeverity is the minimum severity filed with the tracker
	// Default: critical
	TrackerMinSeverity types.Severity
}

// DefaultConfig returns default registry configuration
func DefaultConfig() *Config {
	return &Config{
		EscalationThreshold: 5,
		EscalationAfter:     24 * time.Hour,
		RetentionPeriod:     30 * 24 * time.Hour,
		DefaultOwner:        "unassigned",
		TrackerMinSeverity:  types.SeverityCritical,
	}
}

// UpdateRequest is a partial manual edit to a bug. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Status     *types.Status
	Severity   *types.Severity
	AssignedTo *string
}

// Registry deduplicates error events into bug records. Safe for
// concurrent use.
type Registry struct {
	config   *Config
	analyzer *analyzer.Analyzer
	store    storage.BugStore
	notifier Notifier
	tracker  tracker.Tracker

	mu   sync.RWMutex
	bugs map[string]*types.Bug

	// now is replaceable in tests
	now func() time.Time
}

// NewRegistry creates a registry. The store is required; notifier and
// tracker are optional and skipped when nil.
func NewRegistry(cfg *Config, store storage.BugStore, an *analyzer.Analyzer, notifier Notifier, tr tracker.Tracker) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("registry requires a store")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 5
	}
	if cfg.EscalationAfter <= 0 {
		cfg.EscalationAfter = 24 * time.Hour
	}
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = 30 * 24 * time.Hour
	}
	if cfg.DefaultOwner == "" {
		cfg.DefaultOwner = "unassigned"
	}
	if !cfg.TrackerMinSeverity.IsValid() {
		cfg.TrackerMinSeverity = types.SeverityCritical
	}
	if an == nil {
		an = analyzer.NewAnalyzer(nil)
	}
	return &Registry{
		config:   cfg,
		analyzer: an,
		store:    store,
		notifier: notifier,
		tracker:  tr,
		bugs:     make(map[string]*types.Bug),
		now:      time.Now,
	}, nil
}

// Load seeds the registry from the durable store. Call once on startup.
func (r *Registry) Load(ctx context.Context) error {
	bugs, err := r.store.LoadBugs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bugs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bug := range bugs {
		r.bugs[bug.ID] = bug
	}
	return nil
}

// Process folds one error event into the registry. A first occurrence
// creates a bug, assigns an owner, files a tracker issue when severe
// enough, and announces it; a repeat bumps frequency and last-seen and
// escalates severity one step per qualifying event. Resolved bugs
// ignore further events. Persistence and notification failures are
// logged, never rolled back; the returned bug is a snapshot.
func (r *Registry) Process(ctx context.Context, event *scanner.ErrorEvent) (*types.Bug, error) {
	if event == nil {
		return nil, fmt.Errorf("nil event")
	}

	analysis := r.analyzer.Analyze(event)
	id := types.BugID(analysis.Category, analysis.Component, analysis.Title)
	now := r.now()
	seenAt := event.Timestamp
	if seenAt.IsZero() {
		seenAt = now
	}

	r.mu.Lock()
	bug, exists := r.bugs[id]
	var kind notify.EventKind
	if !exists {
		bug = &types.Bug{
			ID:          id,
			Title:       analysis.Title,
			Description: analysis.Description,
			Severity:    analysis.Severity,
			Category:    analysis.Category,
			Component:   analysis.Component,
			CreatedAt:   now,
			FirstSeen:   seenAt,
			LastSeen:    seenAt,
			Frequency:   1,
			Status:      types.StatusAssigned,
			AssignedTo:  r.ownerFor(analysis.Component),
			StackTrace:  event.StackTrace,
			Metadata:    analysis.Metadata,
		}
		r.bugs[id] = bug
		kind = notify.KindNew
	} else {
		if bug.Status == types.StatusResolved {
			snapshot := bug.Clone()
			r.mu.Unlock()
			return snapshot, nil
		}
		bug.Frequency++
		if seenAt.After(bug.LastSeen) {
			bug.LastSeen = seenAt
		}
		if bug.StackTrace == "" && event.StackTrace != "" {
			bug.StackTrace = event.StackTrace
		}
		if r.qualifiesForEscalation(bug, now) && bug.Severity != types.SeverityCritical {
			bug.Severity = bug.Severity.Escalate()
			kind = notify.KindEscalated
		}
	}
	snapshot := bug.Clone()
	r.mu.Unlock()

	if kind != "" {
		r.fileIssue(ctx, snapshot, kind)
	}

	if err := r.store.SaveBug(ctx, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist bug %s: %v\n", snapshot.ID, err)
	}

	if kind != "" && r.notifier != nil {
		if err := r.notifier.Notify(ctx, kind, snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to notify for bug %s: %v\n", snapshot.ID, err)
		}
	}
	return snapshot, nil
}

// qualifiesForEscalation reports whether the bug has recurred past the
// frequency threshold or kept recurring past the time threshold.
func (r *Registry) qualifiesForEscalation(bug *types.Bug, now time.Time) bool {
	return bug.Frequency > r.config.EscalationThreshold ||
		now.Sub(bug.FirstSeen) > r.config.EscalationAfter
}

// fileIssue creates or updates the tracker issue for the bug. Best
// effort: tracker failures are logged and the pipeline continues.
func (r *Registry) fileIssue(ctx context.Context, snapshot *types.Bug, kind notify.EventKind) {
	if r.tracker == nil || snapshot.Severity.Rank() < r.config.TrackerMinSeverity.Rank() {
		return
	}

	if snapshot.ExternalIssueID == "" {
		issueID, err := r.tracker.CreateIssue(ctx, snapshot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to file issue for bug %s: %v\n", snapshot.ID, err)
			return
		}
		snapshot.ExternalIssueID = issueID

		r.mu.Lock()
		if bug, ok := r.bugs[snapshot.ID]; ok && bug.ExternalIssueID == "" {
			bug.ExternalIssueID = issueID
		}
		r.mu.Unlock()
		return
	}

	if kind == notify.KindEscalated {
		err := r.tracker.UpdateIssue(ctx, snapshot.ExternalIssueID, map[string]string{
			"severity":  string(snapshot.Severity),
			"frequency": fmt.Sprintf("%d", snapshot.Frequency),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to update issue %s: %v\n", snapshot.ExternalIssueID, err)
		}
	}
}

// Cleanup removes resolved bugs whose last occurrence is older than the
// retention period. Returns the number removed.
func (r *Registry) Cleanup(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var removed []string
	for id, bug := range r.bugs {
		if bug.Status == types.StatusResolved && now.Sub(bug.LastSeen) > r.config.RetentionPeriod {
			delete(r.bugs, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		if err := r.store.DeleteBug(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to delete bug %s: %v\n", id, err)
		}
	}
	return len(removed)
}

// Get returns a snapshot of the bug, if present.
func (r *Registry) Get(id string) (*types.Bug, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bug, ok := r.bugs[id]
	if !ok {
		return nil, false
	}
	return bug.Clone(), true
}

// List returns snapshots matching the filter, most recently seen first.
func (r *Registry) List(filter *types.BugFilter) []*types.Bug {
	r.mu.RLock()
	bugs := make([]*types.Bug, 0, len(r.bugs))
	for _, bug := range r.bugs {
		if filter.Matches(bug) {
			bugs = append(bugs, bug.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(bugs, func(i, j int) bool {
		if !bugs[i].LastSeen.Equal(bugs[j].LastSeen) {
			return bugs[i].LastSeen.After(bugs[j].LastSeen)
		}
		return bugs[i].ID < bugs[j].ID
	})
	if filter != nil && filter.Limit > 0 && len(bugs) > filter.Limit {
		bugs = bugs[:filter.Limit]
	}
	return bugs
}

// Update applies a manual edit to a bug and persists it. Resolving a
// bug closes its tracker issue, best effort.
func (r *Registry) Update(ctx context.Context, id string, req UpdateRequest) (*types.Bug, error) {
	if req.Status != nil && !req.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", *req.Status)
	}
	if req.Severity != nil && !req.Severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %s", *req.Severity)
	}

	r.mu.Lock()
	bug, ok := r.bugs[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("bug not found: %s", id)
	}

	if req.Severity != nil {
		bug.Severity = *req.Severity
	}
	if req.AssignedTo != nil {
		bug.AssignedTo = *req.AssignedTo
		if bug.Status == types.StatusNew {
			bug.Status = types.StatusAssigned
		}
	}
	resolved := false
	if req.Status != nil {
		resolved = *req.Status == types.StatusResolved && bug.Status != types.StatusResolved
		bug.Status = *req.Status
	}
	snapshot := bug.Clone()
	r.mu.Unlock()

	if err := r.store.SaveBug(ctx, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist bug %s: %v\n", snapshot.ID, err)
	}
	if resolved && r.tracker != nil && snapshot.ExternalIssueID != "" {
		if err := r.tracker.CloseIssue(ctx, snapshot.ExternalIssueID, "resolved"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close issue %s: %v\n", snapshot.ExternalIssueID, err)
		}
	}
	return snapshot, nil
}

// Statistics aggregates counts over the registry.
func (r *Registry) Statistics() *types.Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &types.Statistics{
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, bug := range r.bugs {
		stats.TotalBugs++
		if bug.Status == types.StatusResolved {
			stats.ResolvedBugs++
		} else {
			stats.OpenBugs++
		}
		stats.BySeverity[string(bug.Severity)]++
		stats.ByCategory[bug.Category]++
		stats.TotalFrequency += bug.Frequency
	}
	return stats
}

func (r *Registry) ownerFor(component string) string {
	if owner, ok := r.config.ComponentOwners[component]; ok {
		return owner
	}
	return r.config.DefaultOwner
}

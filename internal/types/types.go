package types

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Bug represents a deduplicated, persistent record of a recurring defect.
// Repeated occurrences of the same underlying problem collapse onto one
// record via the deterministic ID.
type Bug struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Severity        Severity          `json:"severity"`
	Category        string            `json:"category"`
	Component       string            `json:"component"`
	CreatedAt       time.Time         `json:"created_at"`
	FirstSeen       time.Time         `json:"first_seen"`
	LastSeen        time.Time         `json:"last_seen"`
	Frequency       int               `json:"frequency"`
	Status          Status            `json:"status"`
	AssignedTo      string            `json:"assigned_to,omitempty"`
	ExternalIssueID string            `json:"external_issue_id,omitempty"`
	StackTrace      string            `json:"stack_trace,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the bug has valid field values
func (b *Bug) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}
	if b.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !b.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", b.Severity)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", b.Status)
	}
	if b.Frequency < 1 {
		return fmt.Errorf("frequency must be at least 1 (got %d)", b.Frequency)
	}
	if b.LastSeen.Before(b.FirstSeen) {
		return fmt.Errorf("last_seen cannot be before first_seen")
	}
	return nil
}

// Clone returns a deep copy of the bug, safe to hand to callers without
// exposing registry-internal state.
func (b *Bug) Clone() *Bug {
	clone := *b
	if b.Metadata != nil {
		clone.Metadata = make(map[string]string, len(b.Metadata))
		for k, v := range b.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// BugID derives the stable bug identifier from the deduplication key.
// Two analyses with the same (category, component, title) always map to
// the same ID.
func BugID(category, component, title string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s:%s", category, component, title)
	return fmt.Sprintf("bug-%012x", h.Sum64())
}

// Severity represents how urgent a bug is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the ordering of the severity, low=0 through critical=3.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Escalate returns the severity one step more urgent, capped at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	}
	return s
}

// MaxSeverity returns the more urgent of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Status represents the lifecycle state of a bug
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// BugFilter is used to filter bug queries
type BugFilter struct {
	Status    *Status
	Severity  *Severity
	Category  *string
	Component *string
	Limit     int
}

// Matches reports whether the bug passes the filter
func (f *BugFilter) Matches(b *Bug) bool {
	if f == nil {
		return true
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.Severity != nil && b.Severity != *f.Severity {
		return false
	}
	if f.Category != nil && b.Category != *f.Category {
		return false
	}
	if f.Component != nil && b.Component != *f.Component {
		return false
	}
	return true
}

// Statistics provides aggregate metrics over the bug registry
type Statistics struct {
	TotalBugs      int            `json:"total_bugs"`
	OpenBugs       int            `json:"open_bugs"`
	ResolvedBugs   int            `json:"resolved_bugs"`
	BySeverity     map[string]int `json:"by_severity"`
	ByCategory     map[string]int `json:"by_category"`
	TotalFrequency int            `json:"total_frequency"`
}

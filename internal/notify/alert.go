package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/logbug/logbug/internal/types"
)

// EventKind identifies which bug-lifecycle event triggered a notification.
type EventKind string

const (
	// KindNew fires when a bug is first created
	KindNew EventKind = "new"
	// KindEscalated fires when a bug's severity is raised
	KindEscalated EventKind = "escalated"
	// KindSummary is the periodic registry-wide digest
	KindSummary EventKind = "daily-summary"
)

// Field is one labeled value attached to an alert.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Alert is the channel-neutral notification payload. Every event kind
// reduces to this shape before reaching a sink; sinks decide their own
// wire format.
type Alert struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Urgency types.Severity `json:"urgency"`
	Fields  []Field        `json:"fields,omitempty"`
}

// buildAlert formats a bug-lifecycle event into an alert.
func buildAlert(kind EventKind, bug *types.Bug) *Alert {
	switch kind {
	case KindEscalated:
		return escalationAlert(bug)
	default:
		return newBugAlert(bug)
	}
}

func newBugAlert(bug *types.Bug) *Alert {
	var body strings.Builder
	body.WriteString(bug.Description)
	if bug.StackTrace != "" {
		fmt.Fprintf(&body, "\n\nStack trace:\n%s", truncate(bug.StackTrace, 1500))
	}

	return &Alert{
		Title:   fmt.Sprintf("New bug: %s", bug.Title),
		Body:    body.String(),
		Urgency: bug.Severity,
		Fields:  bugFields(bug),
	}
}

func escalationAlert(bug *types.Bug) *Alert {
	age := bug.LastSeen.Sub(bug.FirstSeen).Round(time.Minute)
	return &Alert{
		Title: fmt.Sprintf("Escalated to %s: %s", bug.Severity, bug.Title),
		Body: fmt.Sprintf("This bug has occurred %d times over %s and has been escalated.",
			bug.Frequency, age),
		Urgency: bug.Severity,
		Fields:  bugFields(bug),
	}
}

// SummaryAlert aggregates registry-wide statistics into one digest alert.
func SummaryAlert(stats *types.Statistics, recent []*types.Bug) *Alert {
	var body strings.Builder
	fmt.Fprintf(&body, "%d bugs tracked (%d open, %d resolved).\n",
		stats.TotalBugs, stats.OpenBugs, stats.ResolvedBugs)

	if len(stats.BySeverity) > 0 {
		body.WriteString("\nBy severity:\n")
		for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow} {
			if n := stats.BySeverity[string(sev)]; n > 0 {
				fmt.Fprintf(&body, "  %s: %d\n", sev, n)
			}
		}
	}

	if len(recent) > 0 {
		body.WriteString("\nRecent activity:\n")
		for _, bug := range recent {
			fmt.Fprintf(&body, "  [%s] %s (seen %dx)\n", bug.Severity, truncate(bug.Title, 80), bug.Frequency)
		}
	}

	return &Alert{
		Title:   fmt.Sprintf("Daily bug summary: %d open", stats.OpenBugs),
		Body:    body.String(),
		Urgency: types.SeverityLow,
		Fields: []Field{
			{Name: "total", Value: fmt.Sprintf("%d", stats.TotalBugs)},
			{Name: "open", Value: fmt.Sprintf("%d", stats.OpenBugs)},
		},
	}
}

func bugFields(bug *types.Bug) []Field {
	fields := []Field{
		{Name: "severity", Value: string(bug.Severity)},
		{Name: "category", Value: bug.Category},
		{Name: "component", Value: bug.Component},
		{Name: "frequency", Value: fmt.Sprintf("%d", bug.Frequency)},
		{Name: "first_seen", Value: bug.FirstSeen.Format(time.RFC3339)},
	}
	if bug.AssignedTo != "" {
		fields = append(fields, Field{Name: "assigned_to", Value: bug.AssignedTo})
	}
	if bug.ExternalIssueID != "" {
		fields = append(fields, Field{Name: "issue", Value: bug.ExternalIssueID})
	}
	return fields
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

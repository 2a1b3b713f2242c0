package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logbug/logbug/internal/types"
)

func TestBuildAlert_NewBug(t *testing.T) {
	bug := testBug()
	bug.Description = "Pattern log_error matched in /var/log/app.log at line 3."
	bug.StackTrace = "Traceback (most recent call last):\n  File \"app/db.py\", line 17, in query"
	bug.AssignedTo = "alice"
	bug.ExternalIssueID = "LT-3"

	alert := buildAlert(KindNew, bug)
	require.NotNil(t, alert)

	assert.Equal(t, "New bug: "+bug.Title, alert.Title)
	assert.Equal(t, types.SeverityHigh, alert.Urgency)
	assert.Contains(t, alert.Body, bug.Description)
	assert.Contains(t, alert.Body, "Stack trace:")

	fields := make(map[string]string, len(alert.Fields))
	for _, f := range alert.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "high", fields["severity"])
	assert.Equal(t, "database", fields["component"])
	assert.Equal(t, "1", fields["frequency"])
	assert.Equal(t, "alice", fields["assigned_to"])
	assert.Equal(t, "LT-3", fields["issue"])
}

func TestBuildAlert_Escalated(t *testing.T) {
	bug := testBug()
	bug.Severity = types.SeverityCritical
	bug.Frequency = 8
	bug.LastSeen = bug.FirstSeen.Add(3 * time.Hour)

	alert := buildAlert(KindEscalated, bug)
	require.NotNil(t, alert)

	assert.Equal(t, "Escalated to critical: "+bug.Title, alert.Title)
	assert.Contains(t, alert.Body, "8 times")
	assert.Contains(t, alert.Body, "3h0m")
	assert.Equal(t, types.SeverityCritical, alert.Urgency)
}

func TestBuildAlert_StackTraceTruncated(t *testing.T) {
	bug := testBug()
	bug.StackTrace = strings.Repeat("x", 5000)

	alert := buildAlert(KindNew, bug)
	assert.Less(t, len(alert.Body), 2500, "oversized traces must be truncated")
}

func TestSummaryAlert(t *testing.T) {
	stats := &types.Statistics{
		TotalBugs:    5,
		OpenBugs:     3,
		ResolvedBugs: 2,
		BySeverity:   map[string]int{"critical": 1, "medium": 4},
	}
	recent := []*types.Bug{testBug()}

	alert := SummaryAlert(stats, recent)
	require.NotNil(t, alert)

	assert.Equal(t, "Daily bug summary: 3 open", alert.Title)
	assert.Contains(t, alert.Body, "5 bugs tracked (3 open, 2 resolved)")
	assert.Contains(t, alert.Body, "critical: 1")
	assert.Contains(t, alert.Body, "Recent activity:")
	assert.Contains(t, alert.Body, recent[0].Title[:40])
}

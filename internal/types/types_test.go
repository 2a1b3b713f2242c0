package types

import (
	"testing"
	"time"
)

func TestBugID_Deterministic(t *testing.T) {
	a := BugID("database", "api", "ConnectionError: refused")
	b := BugID("database", "api", "ConnectionError: refused")
	if a != b {
		t.Errorf("same dedup key produced different IDs: %s vs %s", a, b)
	}

	c := BugID("database", "api", "ConnectionError: reset")
	if a == c {
		t.Errorf("different titles produced the same ID: %s", a)
	}

	d := BugID("network", "api", "ConnectionError: refused")
	if a == d {
		t.Errorf("different categories produced the same ID: %s", a)
	}
}

func TestSeverity_Escalate(t *testing.T) {
	tests := []struct {
		name string
		in   Severity
		want Severity
	}{
		{"low to medium", SeverityLow, SeverityMedium},
		{"medium to high", SeverityMedium, SeverityHigh},
		{"high to critical", SeverityHigh, SeverityCritical},
		{"critical stays critical", SeverityCritical, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Escalate(); got != tt.want {
				t.Errorf("Escalate(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("rank of %s should exceed rank of %s", order[i], order[i-1])
		}
	}
	if Severity("bogus").Rank() != -1 {
		t.Errorf("unknown severity should rank -1")
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity(SeverityLow, SeverityHigh); got != SeverityHigh {
		t.Errorf("MaxSeverity(low, high) = %s, want high", got)
	}
	if got := MaxSeverity(SeverityCritical, SeverityMedium); got != SeverityCritical {
		t.Errorf("MaxSeverity(critical, medium) = %s, want critical", got)
	}
}

func TestBug_Validate(t *testing.T) {
	now := time.Now()
	valid := func() *Bug {
		return &Bug{
			ID:        BugID("application", "api", "boom"),
			Title:     "boom",
			Severity:  SeverityMedium,
			Category:  "application",
			Component: "api",
			FirstSeen: now,
			LastSeen:  now,
			Frequency: 1,
			Status:    StatusNew,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid bug failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Bug)
	}{
		{"missing id", func(b *Bug) { b.ID = "" }},
		{"missing title", func(b *Bug) { b.Title = "" }},
		{"bad severity", func(b *Bug) { b.Severity = "urgent" }},
		{"bad status", func(b *Bug) { b.Status = "closed" }},
		{"zero frequency", func(b *Bug) { b.Frequency = 0 }},
		{"last seen before first seen", func(b *Bug) { b.LastSeen = now.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			if err := b.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestBug_Clone(t *testing.T) {
	b := &Bug{
		ID:       "bug-1",
		Title:    "t",
		Metadata: map[string]string{"line": "42"},
	}
	clone := b.Clone()
	clone.Metadata["line"] = "99"
	if b.Metadata["line"] != "42" {
		t.Error("clone shares metadata map with original")
	}
}

func TestBugFilter_Matches(t *testing.T) {
	resolved := StatusResolved
	high := SeverityHigh
	db := "database"

	bug := &Bug{Status: StatusResolved, Severity: SeverityHigh, Category: "database", Component: "api"}

	if !(&BugFilter{Status: &resolved, Severity: &high, Category: &db}).Matches(bug) {
		t.Error("matching filter rejected bug")
	}

	open := StatusNew
	if (&BugFilter{Status: &open}).Matches(bug) {
		t.Error("status filter accepted non-matching bug")
	}

	var nilFilter *BugFilter
	if !nilFilter.Matches(bug) {
		t.Error("nil filter should match everything")
	}
}

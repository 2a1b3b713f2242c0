package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/types"
)

func pyEvent() *scanner.ErrorEvent {
	return &scanner.ErrorEvent{
		ID:          "evt-1",
		SourcePath:  "/var/log/api/app.log",
		PatternName: "python_exception",
		Severity:    types.SeverityHigh,
		Category:    "application",
		MatchedText: "AttributeError: 'NoneType' object has no attribute 'query'",
		Context:     "  File \"app/db.py\", line 17, in query\nAttributeError: 'NoneType' object has no attribute 'query'",
		LineNumber:  7,
		StackTrace: "Traceback (most recent call last):\n" +
			"  File \"app/handlers.py\", line 42, in get_user\n" +
			"  File \"app/db.py\", line 17, in query\n" +
			"AttributeError: 'NoneType' object has no attribute 'query'",
	}
}

func TestAnalyze_TitleFromExceptionPair(t *testing.T) {
	a := NewAnalyzer(nil)
	analysis := a.Analyze(pyEvent())

	if !strings.HasPrefix(analysis.Title, "AttributeError: ") {
		t.Errorf("title = %q, want AttributeError prefix", analysis.Title)
	}
	if !strings.Contains(analysis.Title, "NoneType") {
		t.Errorf("title = %q, want message text", analysis.Title)
	}
}

func TestAnalyze_TitleFallbacks(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name    string
		matched string
		want    string
	}{
		{"first line fallback", "ERROR disk almost full\nsecond line", "ERROR disk almost full"},
		{"empty text", "", "Unknown Error"},
		{"whitespace only", "  \n\t", "Unknown Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &scanner.ErrorEvent{
				PatternName: "log_error",
				SourcePath:  "/var/log/app.log",
				Severity:    types.SeverityMedium,
				MatchedText: tt.matched,
			}
			if got := a.Analyze(event).Title; got != tt.want {
				t.Errorf("title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_TitleTruncated(t *testing.T) {
	a := NewAnalyzer(&Config{MaxTitleLength: 40})
	event := pyEvent()
	event.MatchedText = "ValueError: " + strings.Repeat("m", 500)
	if got := a.Analyze(event).Title; len(got) > 40 {
		t.Errorf("title length = %d, want <= 40", len(got))
	}
}

func TestAnalyze_SeverityUpgradeOnly(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name    string
		matched string
		base    types.Severity
		want    types.Severity
	}{
		{"oom forces critical", "ERROR worker out of memory", types.SeverityLow, types.SeverityCritical},
		{"panic forces critical", "panic: runtime error", types.SeverityMedium, types.SeverityCritical},
		{"connection refused forces high", "ERROR connection refused to db:5432", types.SeverityLow, types.SeverityHigh},
		{"auth failure forces high", "ERROR authentication failed for admin", types.SeverityMedium, types.SeverityHigh},
		{"critical never downgraded", "ERROR connection refused", types.SeverityCritical, types.SeverityCritical},
		{"no keyword keeps default", "ERROR something odd", types.SeverityMedium, types.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &scanner.ErrorEvent{
				PatternName: "log_error",
				SourcePath:  fmt.Sprintf("/var/log/%s.log", tt.name),
				Severity:    tt.base,
				MatchedText: tt.matched,
			}
			if got := a.Analyze(event).Severity; got != tt.want {
				t.Errorf("severity = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAnalyze_RootCauseAndFix(t *testing.T) {
	a := NewAnalyzer(nil)

	analysis := a.Analyze(pyEvent())
	if analysis.RootCause != "Nil or missing value dereferenced" {
		t.Errorf("root cause = %q", analysis.RootCause)
	}
	if analysis.SuggestedFix == "" {
		t.Error("expected a suggested fix for a known root cause")
	}
}

func TestAnalyze_RootCauseColonFallback(t *testing.T) {
	a := NewAnalyzer(nil)
	event := &scanner.ErrorEvent{
		PatternName: "log_error",
		SourcePath:  "/var/log/odd.log",
		Severity:    types.SeverityMedium,
		MatchedText: "ERROR widget exploded: spring tension exceeded design limit",
	}

	analysis := a.Analyze(event)
	if !strings.Contains(analysis.RootCause, "spring tension") {
		t.Errorf("root cause = %q, want colon-tail fallback", analysis.RootCause)
	}
}

func TestAnalyze_FixHeuristics(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name    string
		matched string
		wantSub string
	}{
		{"404", "ERROR upstream returned 404 for /v2/widgets", "route or resource"},
		{"async", "ERROR coroutine 'fetch' was never awaited", "awaited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &scanner.ErrorEvent{
				PatternName: "log_error",
				SourcePath:  "/var/log/" + tt.name + ".log",
				Severity:    types.SeverityMedium,
				MatchedText: tt.matched,
			}
			analysis := a.Analyze(event)
			if !strings.Contains(analysis.SuggestedFix, tt.wantSub) {
				t.Errorf("fix = %q, want substring %q", analysis.SuggestedFix, tt.wantSub)
			}
		})
	}
}

func TestAnalyze_ComponentIdentification(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name    string
		path    string
		matched string
		want    string
	}{
		{"database from text", "/var/log/svc.log", "ERROR database query failed on table users", "database"},
		{"auth from text", "/var/log/svc.log", "ERROR invalid token: session expired for login", "auth"},
		{"path vocabulary fallback", "/srv/logs/workers/run.log", "ERROR something nondescript went sideways", "queue"},
		{"unknown", "/var/log/misc.log", "ERROR nondescript", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &scanner.ErrorEvent{
				PatternName: "log_error",
				SourcePath:  tt.path,
				Severity:    types.SeverityMedium,
				MatchedText: tt.matched,
			}
			if got := a.Analyze(event).Component; got != tt.want {
				t.Errorf("component = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_CacheHitIsStable(t *testing.T) {
	a := NewAnalyzer(nil)

	first := a.Analyze(pyEvent())
	second := a.Analyze(pyEvent())
	if first != second {
		t.Error("cache hit should return the stored analysis")
	}
	if a.CacheLen() != 1 {
		t.Errorf("cache len = %d, want 1", a.CacheLen())
	}
}

func TestAnalyze_CacheEviction(t *testing.T) {
	a := NewAnalyzer(&Config{CacheSize: 10})

	for i := 0; i < 11; i++ {
		a.Analyze(&scanner.ErrorEvent{
			PatternName: "log_error",
			SourcePath:  fmt.Sprintf("/var/log/f%d.log", i),
			Severity:    types.SeverityMedium,
			MatchedText: fmt.Sprintf("ERROR failure %d", i),
		})
	}

	// Capacity 10 exceeded at insert 11: oldest 10% (one entry) evicted.
	if got := a.CacheLen(); got != 10 {
		t.Errorf("cache len = %d, want 10", got)
	}
}

func TestAnalyze_RelatedFiles(t *testing.T) {
	a := NewAnalyzer(nil)
	event := pyEvent()
	event.Context = "from app.db import query\n" + event.Context

	analysis := a.Analyze(event)
	if len(analysis.RelatedFiles) == 0 || analysis.RelatedFiles[0] != "/var/log/api/app.log" {
		t.Fatalf("related files should start with source path: %v", analysis.RelatedFiles)
	}

	joined := strings.Join(analysis.RelatedFiles, " ")
	if !strings.Contains(joined, "app/handlers.py") || !strings.Contains(joined, "app/db.py") {
		t.Errorf("related files missing trace paths: %v", analysis.RelatedFiles)
	}
	if !strings.Contains(joined, "app.db") {
		t.Errorf("related files missing import token: %v", analysis.RelatedFiles)
	}

	// Deduplicated: app/db.py appears in two trace frames but once here.
	count := 0
	for _, f := range analysis.RelatedFiles {
		if f == "app/db.py" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("app/db.py appears %d times, want 1", count)
	}
}

func TestAnalyze_Metadata(t *testing.T) {
	a := NewAnalyzer(nil)
	event := &scanner.ErrorEvent{
		PatternName: "log_error",
		SourcePath:  "/var/log/db.log",
		Severity:    types.SeverityMedium,
		MatchedText: `ERROR query on table "orders" from 10.0.3.7:5432 timed out after 30.5 s in execute(`,
	}

	meta := a.Analyze(event).Metadata
	if meta == nil {
		t.Fatal("expected metadata")
	}
	if meta["db_object"] != "orders" {
		t.Errorf("db_object = %q, want orders", meta["db_object"])
	}
	if !strings.HasPrefix(meta["ip_address"], "10.0.3.7") {
		t.Errorf("ip_address = %q", meta["ip_address"])
	}
	if meta["duration"] == "" {
		t.Errorf("duration missing: %v", meta)
	}
}

// Package analyzer turns raw error events into structured analyses:
// title, severity, component, root cause, suggested fix, and extracted
// metadata. Classification is driven by the rule tables in rules.go and
// results are memoized by a content-derived cache key.
package analyzer

import (
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/types"
)

// Analysis is the classified, human-readable interpretation of an error
// event. Derived and cached; never persisted on its own.
type Analysis struct {
	Title        string
	Description  string
	Severity     types.Severity
	Category     string
	Component    string
	RootCause    string
	SuggestedFix string
	RelatedFiles []string
	Metadata     map[string]string
}

// Config holds analyzer configuration
type Config struct {
	// CacheSize bounds the analysis cache. When exceeded, the oldest
	// ~10% of entries by last access are evicted.
	// Default: 1000
	CacheSize int
	// MaxTitleLength bounds extracted titles
	// Default: 140
	MaxTitleLength int
}

// DefaultConfig returns default analyzer configuration
func DefaultConfig() *Config {
	return &Config{
		CacheSize:      1000,
		MaxTitleLength: 140,
	}
}

type cacheEntry struct {
	analysis   *Analysis
	lastAccess time.Time
}

// Analyzer classifies error events. Safe for concurrent use.
type Analyzer struct {
	mu     sync.Mutex
	config *Config
	cache  map[string]*cacheEntry
}

// NewAnalyzer creates an analyzer with the given configuration.
func NewAnalyzer(cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = 140
	}
	return &Analyzer{
		config: cfg,
		cache:  make(map[string]*cacheEntry),
	}
}

var exceptionTitleRe = regexp.MustCompile(`([A-Za-z_][\w.$]*(?:Error|Exception|Panic))\s*:\s*([^\n]+)`)

// Analyze produces an analysis for the event. Deterministic for the same
// inputs: a cache hit returns the stored analysis with only its last
// access refreshed. Analysis never fails past this boundary; internal
// parsing problems degrade to a default analysis.
func (a *Analyzer) Analyze(event *scanner.ErrorEvent) (analysis *Analysis) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "analyzer: debug: degraded analysis for pattern %s: %v\n", event.PatternName, r)
			analysis = a.fallback(event)
		}
	}()

	key := cacheKey(event)

	a.mu.Lock()
	if entry, ok := a.cache[key]; ok {
		entry.lastAccess = time.Now()
		a.mu.Unlock()
		return entry.analysis
	}
	a.mu.Unlock()

	analysis = a.classify(event)

	a.mu.Lock()
	a.cache[key] = &cacheEntry{analysis: analysis, lastAccess: time.Now()}
	a.evictLocked()
	a.mu.Unlock()

	return analysis
}

// CacheLen returns the number of cached analyses.
func (a *Analyzer) CacheLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}

// cacheKey derives the memoization key from the pattern name, the first
// 100 characters of the matched text, and the source path.
func cacheKey(event *scanner.ErrorEvent) string {
	matched := event.MatchedText
	if len(matched) > 100 {
		matched = matched[:100]
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", event.PatternName, matched, event.SourcePath)
	return fmt.Sprintf("%x", h.Sum64())
}

// evictLocked removes the oldest ~10% of entries by last access once the
// cache exceeds its capacity. Caller holds a.mu.
func (a *Analyzer) evictLocked() {
	if len(a.cache) <= a.config.CacheSize {
		return
	}

	type aged struct {
		key  string
		last time.Time
	}
	entries := make([]aged, 0, len(a.cache))
	for k, e := range a.cache {
		entries = append(entries, aged{k, e.lastAccess})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].last.Before(entries[j].last) })

	n := a.config.CacheSize / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n && i < len(entries); i++ {
		delete(a.cache, entries[i].key)
	}
}

// classify runs the full rule pipeline for one event.
func (a *Analyzer) classify(event *scanner.ErrorEvent) *Analysis {
	combined := event.MatchedText + "\n" + event.Context + "\n" + event.StackTrace

	severity := event.Severity
	for _, rule := range severityRules {
		if rule.Pattern.MatchString(combined) {
			severity = types.MaxSeverity(severity, rule.Min)
		}
	}

	rootCause := findRootCause(event.MatchedText, combined)

	return &Analysis{
		Title:        a.title(event),
		Description:  describe(event),
		Severity:     severity,
		Category:     category(event),
		Component:    identifyComponent(event.SourcePath, combined),
		RootCause:    rootCause,
		SuggestedFix: suggestFix(rootCause, combined),
		RelatedFiles: relatedFiles(event.SourcePath, event.StackTrace, event.Context),
		Metadata:     extractMetadata(combined),
	}
}

// fallback is the degraded analysis used when classification fails.
func (a *Analyzer) fallback(event *scanner.ErrorEvent) *Analysis {
	return &Analysis{
		Title:        a.title(event),
		Description:  describe(event),
		Severity:     event.Severity,
		Category:     category(event),
		Component:    "unknown",
		RelatedFiles: []string{event.SourcePath},
	}
}

// title prefers an exception-type + message pair, falls back to the first
// matched line, and labels empty matches "Unknown Error".
func (a *Analyzer) title(event *scanner.ErrorEvent) string {
	if m := exceptionTitleRe.FindStringSubmatch(event.MatchedText); m != nil {
		return truncate(m[1]+": "+strings.TrimSpace(m[2]), a.config.MaxTitleLength)
	}

	for _, line := range strings.Split(event.MatchedText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return truncate(trimmed, a.config.MaxTitleLength)
		}
	}
	return "Unknown Error"
}

func category(event *scanner.ErrorEvent) string {
	if event.Category != "" {
		return event.Category
	}
	return "application"
}

func describe(event *scanner.ErrorEvent) string {
	context := truncate(event.Context, 1000)
	return fmt.Sprintf("Pattern %s matched in %s at line %d.\n\n%s",
		event.PatternName, event.SourcePath, event.LineNumber, context)
}

// findRootCause returns the first matching cause from the rule table,
// else the text after the first colon of the match, else "".
func findRootCause(matched, combined string) string {
	for _, rule := range rootCauseRules {
		if rule.Pattern.MatchString(combined) {
			return rule.Cause
		}
	}

	if idx := strings.Index(matched, ":"); idx >= 0 && idx < len(matched)-1 {
		tail := strings.TrimSpace(matched[idx+1:])
		if line := strings.SplitN(tail, "\n", 2)[0]; line != "" {
			return truncate(line, 160)
		}
	}
	return ""
}

// suggestFix looks the cause up in the fix table, then tries the
// standalone heuristics.
func suggestFix(rootCause, combined string) string {
	if fix, ok := suggestedFixes[rootCause]; ok {
		return fix
	}
	for _, h := range fixHeuristics {
		if h.Pattern.MatchString(combined) {
			return h.Fix
		}
	}
	return ""
}

// identifyComponent scores each component rule against the path and text;
// the highest count wins and ties prefer the component whose pattern
// matched the source path. Falls back to path-segment vocabulary, then
// "unknown".
func identifyComponent(sourcePath, combined string) string {
	scored := sourcePath + "\n" + combined

	best := ""
	bestScore := 0
	bestOnPath := false
	for _, rule := range componentRules {
		score := len(rule.Pattern.FindAllString(scored, -1))
		if score == 0 {
			continue
		}
		onPath := rule.Pattern.MatchString(sourcePath)
		if score > bestScore || (score == bestScore && onPath && !bestOnPath) {
			best = rule.Name
			bestScore = score
			bestOnPath = onPath
		}
	}
	if best != "" {
		return best
	}

	for _, segment := range strings.FieldsFunc(strings.ToLower(sourcePath), func(r rune) bool {
		return r == '/' || r == '\\' || r == '.' || r == '_' || r == '-'
	}) {
		if component, ok := componentVocabulary[segment]; ok {
			return component
		}
	}
	return "unknown"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

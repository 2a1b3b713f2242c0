// Package patterns defines the error signatures the scanner recognizes in
// log sources. The process-wide set is ordered and append-only: built-in
// patterns are registered first, custom patterns may be added at runtime but
// never removed or reordered.
package patterns

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/logbug/logbug/internal/types"
)

// ErrorPattern describes one recognizable error signature.
// Immutable once registered.
type ErrorPattern struct {
	// Name identifies the pattern (e.g. "python_exception")
	Name string
	// Regex is the compiled signature, matched against newly appended log text
	Regex *regexp.Regexp
	// DefaultSeverity is the severity assigned before analyzer upgrades
	DefaultSeverity types.Severity
	// DefaultCategory is the category assigned before analysis
	DefaultCategory string
}

// Set is an ordered, append-only collection of error patterns.
type Set struct {
	mu       sync.RWMutex
	patterns []*ErrorPattern
	byName   map[string]bool
}

// NewSet creates an empty pattern set.
func NewSet() *Set {
	return &Set{
		byName: make(map[string]bool),
	}
}

// DefaultSet returns a set preloaded with the built-in patterns.
func DefaultSet() *Set {
	s := NewSet()
	for _, p := range builtinPatterns() {
		// Built-in expressions are compile-tested; a failure here is a
		// programming error, not a runtime condition.
		if err := s.Register(p.name, p.expr, p.severity, p.category); err != nil {
			panic(fmt.Sprintf("invalid built-in pattern %q: %v", p.name, err))
		}
	}
	return s
}

// Register compiles and appends a pattern to the set.
// Names must be unique; duplicates are rejected.
func (s *Set) Register(name, expr string, severity types.Severity, category string) error {
	if name == "" {
		return fmt.Errorf("pattern name is required")
	}
	if !severity.IsValid() {
		return fmt.Errorf("invalid severity for pattern %q: %s", name, severity)
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compiling pattern %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byName[name] {
		return fmt.Errorf("pattern %q already registered", name)
	}

	s.byName[name] = true
	s.patterns = append(s.patterns, &ErrorPattern{
		Name:            name,
		Regex:           re,
		DefaultSeverity: severity,
		DefaultCategory: category,
	})
	return nil
}

// Patterns returns a snapshot of the registered patterns in registration
// order. The returned slice is a copy; the patterns themselves are shared
// but immutable.
func (s *Set) Patterns() []*ErrorPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ErrorPattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Len returns the number of registered patterns.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

type builtin struct {
	name     string
	expr     string
	severity types.Severity
	category string
}

// builtinPatterns lists the default signatures in matching priority order.
// Most patterns anchor on a whole line ((?m) mode) so one log entry yields
// one match.
func builtinPatterns() []builtin {
	return []builtin{
		// Python: match the final exception line of a traceback, not the
		// "Traceback (most recent call last):" header, so a full traceback
		// produces a single event.
		{"python_exception", `(?m)^[A-Z][A-Za-z0-9_]*(?:Error|Exception)(?::\s?.*)?$`, types.SeverityHigh, "application"},
		{"go_panic", `(?m)^panic: .*$`, types.SeverityCritical, "runtime"},
		{"java_exception", `(?m)^(?:Exception in thread "[^"]*"\s+)?[a-z][a-z0-9_]*(?:\.[A-Za-z0-9_$]+)+(?:Exception|Error)(?::.*)?$`, types.SeverityHigh, "application"},
		{"oom", `(?i)out of memory|oom[- ]?kill|cannot allocate memory`, types.SeverityCritical, "resource"},
		{"segfault", `(?i)segmentation fault|sigsegv`, types.SeverityCritical, "runtime"},
		{"db_error", `(?i)\b(?:database|sql|query)\b[^\n]{0,60}\b(?:error|failed|failure|refused)\b`, types.SeverityHigh, "database"},
		{"auth_failure", `(?i)\b(?:authentication|authorization|permission|access)\b[^\n]{0,40}\b(?:failed|denied|invalid)\b`, types.SeverityHigh, "security"},
		{"timeout", `(?i)\btim(?:ed?|e)[ -]?out\b|\bdeadline exceeded\b`, types.SeverityMedium, "network"},
		{"http_5xx", `(?mi)\bstatus(?:\s+code)?\s*[:=]?\s*5\d\d\b|\bHTTP/\d(?:\.\d)?"?\s+5\d\d\b`, types.SeverityMedium, "network"},
		// Generic leveled log line; kept last so specific signatures win
		// priority for the same entry.
		{"log_error", `(?m)^.*\b(?:ERROR|FATAL|CRITICAL)\b[:\s\]].*$`, types.SeverityMedium, "application"},
	}
}

package scanner

import (
	"regexp"
	"strings"
)

// Boundary detection for context windows and stack traces. A "log entry
// boundary" is a line that starts a new timestamped or leveled entry.
var (
	entryBoundaryRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]|^\[?\d{2}:\d{2}:\d{2}|^(?:DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)
	logLevelRe      = regexp.MustCompile(`\b(?:DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)
	traceMarkerRe   = regexp.MustCompile(`Traceback \(most recent call last\):|^panic: |^goroutine \d+|^\s+at\s+\S|^\s+File "`)
)

// maxContextRadius bounds how many lines around a match are considered for
// the context window when no blank line or entry boundary cuts it earlier.
const maxContextRadius = 5

// maxTraceLookback bounds how far above a match we search for the start of
// a stack trace (Python tracebacks put the exception line last).
const maxTraceLookback = 50

// contextWindow returns the line containing the match plus the surrounding
// lines, bounded by blank lines or the start of the next log entry.
func contextWindow(lines []string, idx int) string {
	start := idx
	for start > 0 && idx-start < maxContextRadius {
		prev := lines[start-1]
		if strings.TrimSpace(prev) == "" {
			break
		}
		if entryBoundaryRe.MatchString(prev) {
			// Include the entry header the match belongs to, then stop.
			start--
			break
		}
		start--
	}

	end := idx
	for end < len(lines)-1 && end-idx < maxContextRadius {
		next := lines[end+1]
		if strings.TrimSpace(next) == "" {
			break
		}
		if entryBoundaryRe.MatchString(next) {
			break
		}
		end++
	}

	return strings.Join(lines[start:end+1], "\n")
}

// extractStackTrace returns the full stack trace surrounding the match
// line, or "" when no trace marker is present nearby. The trace runs from
// its marker line down to the next blank line or log-level marker.
func extractStackTrace(lines []string, idx int) string {
	// Find the trace start: the match line itself may be the marker
	// (go panics), or the marker may sit above it (Python tracebacks
	// end with the exception line). Non-marker lines in between (source
	// snippets under File lines) do not terminate the upward scan; blank
	// lines and unrelated entry headers do.
	start := -1
	lookback := idx - maxTraceLookback
	if lookback < 0 {
		lookback = 0
	}
	for i := idx; i >= lookback; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			break
		}
		if i < idx && entryBoundaryRe.MatchString(line) && !traceMarkerRe.MatchString(line) {
			break
		}
		if traceMarkerRe.MatchString(line) {
			start = i
		}
	}
	if start < 0 {
		return ""
	}

	end := start
	for end < len(lines)-1 {
		next := lines[end+1]
		if strings.TrimSpace(next) == "" {
			break
		}
		// A new leveled log line terminates the trace, unless it is the
		// exception line that concludes a Python traceback.
		if end+1 > idx && logLevelRe.MatchString(next) {
			break
		}
		end++
	}
	if end < idx {
		end = idx
	}

	return strings.Join(lines[start:end+1], "\n")
}

// truncateLines caps each line at maxLen bytes so a multi-megabyte single
// line cannot blow up regex matching memory.
func truncateLines(lines []string, maxLen int) {
	if maxLen <= 0 {
		return
	}
	for i, line := range lines {
		if len(line) > maxLen {
			lines[i] = line[:maxLen]
		}
	}
}

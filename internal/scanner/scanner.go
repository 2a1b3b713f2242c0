// Package scanner incrementally reads newly appended bytes from watched log
// files, matches them against the registered error patterns, and emits raw
// error events into a bounded queue. No deduplication or persistence
// happens here.
package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logbug/logbug/internal/patterns"
	"github.com/logbug/logbug/internal/types"
)

// ErrorEvent is a single raw pattern match extracted from a log source,
// not yet classified. Consumed exactly once by the analyzer pipeline and
// never persisted.
type ErrorEvent struct {
	// ID uniquely identifies the event
	ID string
	// Timestamp is when the scanner observed the match
	Timestamp time.Time
	// SourcePath is the absolute path of the log file
	SourcePath string
	// PatternName is the name of the pattern that matched
	PatternName string
	// Severity is the pattern's default severity
	Severity types.Severity
	// Category is the pattern's default category
	Category string
	// MatchedText is the text the pattern matched
	MatchedText string
	// Context is the matched line plus immediate surrounding lines
	Context string
	// LineNumber is the 1-based line of the match within the file
	LineNumber int
	// StackTrace is the full trace surrounding the match, if any
	StackTrace string
}

// Config holds scanner configuration
type Config struct {
	// WatchDirs are the directories scanned for log files
	WatchDirs []string
	// Extensions are the file extensions treated as log sources
	// Default: .log, .txt, .out, .err
	Extensions []string
	// Patterns is the pattern set matched against new content
	Patterns *patterns.Set
	// QueueSize bounds the event queue
	// Default: 1000
	QueueSize int
	// MaxLineLength truncates longer lines before matching to bound
	// memory on multi-megabyte single-line entries
	// Default: 8192
	MaxLineLength int
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() *Config {
	return &Config{
		Extensions:    []string{".log", ".txt", ".out", ".err"},
		QueueSize:     1000,
		MaxLineLength: 8192,
	}
}

// Stats is a snapshot of scanner counters
type Stats struct {
	// FilesTracked is the number of files with a stored offset
	FilesTracked int
	// BytesRead is the total bytes consumed across all polls
	BytesRead int64
	// EventsEmitted is the total events pushed to the queue
	EventsEmitted int64
	// EventsDropped is the total events evicted from the full queue
	EventsDropped int64
	// ReadErrors counts per-file failures that were skipped
	ReadErrors int64
}

// Scanner tracks a byte offset per watched file and turns newly appended
// content into error events.
type Scanner struct {
	mu sync.Mutex

	config   *Config
	patterns *patterns.Set
	queue    *Queue

	// offsets maps absolute file path to the next byte to read
	offsets map[string]int64
	// lineCounts maps absolute file path to lines already consumed,
	// used to report file-relative line numbers
	lineCounts map[string]int

	bytesRead     int64
	eventsEmitted int64
	readErrors    int64
}

// NewScanner creates a scanner for the configured directories.
func NewScanner(cfg *Config) (*Scanner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Patterns == nil {
		cfg.Patterns = patterns.DefaultSet()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultConfig().Extensions
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = 8192
	}

	return &Scanner{
		config:     cfg,
		patterns:   cfg.Patterns,
		queue:      NewQueue(cfg.QueueSize),
		offsets:    make(map[string]int64),
		lineCounts: make(map[string]int),
	}, nil
}

// Queue returns the event queue the scanner pushes into.
func (s *Scanner) Queue() *Queue {
	return s.queue
}

// Stats returns a snapshot of scanner counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		FilesTracked:  len(s.offsets),
		BytesRead:     s.bytesRead,
		EventsEmitted: s.eventsEmitted,
		EventsDropped: s.queue.Dropped(),
		ReadErrors:    s.readErrors,
	}
}

// Poll scans every watched directory once and pushes any matches onto the
// queue. Per-file errors are logged and skip only that file; Poll itself
// fails only on context cancellation. Returns the number of events emitted.
func (s *Scanner) Poll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emitted := 0
	for _, dir := range s.config.WatchDirs {
		select {
		case <-ctx.Done():
			return emitted, ctx.Err()
		default:
		}

		files, err := s.listLogFiles(dir)
		if err != nil {
			s.readErrors++
			fmt.Fprintf(os.Stderr, "scanner: warning: listing %s: %v\n", dir, err)
			continue
		}

		for _, path := range files {
			select {
			case <-ctx.Done():
				return emitted, ctx.Err()
			default:
			}

			n, err := s.scanFile(path)
			if err != nil {
				s.readErrors++
				fmt.Fprintf(os.Stderr, "scanner: warning: reading %s: %v\n", path, err)
				continue
			}
			emitted += n
		}
	}
	return emitted, nil
}

// listLogFiles returns the absolute paths of files in dir with a known log
// extension, in stable order so events from one poll are deterministic.
func (s *Scanner) listLogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range s.config.Extensions {
			if ext == want {
				abs, err := filepath.Abs(filepath.Join(dir, entry.Name()))
				if err != nil {
					abs = filepath.Join(dir, entry.Name())
				}
				files = append(files, abs)
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// scanFile reads from the stored offset to EOF and matches the new bytes.
// A file that shrank since the last poll (rotation) restarts from 0.
// Caller holds s.mu.
func (s *Scanner) scanFile(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	offset := s.offsets[path]
	if info.Size() < offset {
		// Rotated or truncated; never seek negatively.
		offset = 0
		s.lineCounts[path] = 0
	}
	if info.Size() == offset {
		// Track the file even when it has produced no bytes yet.
		s.offsets[path] = offset
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	chunk, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}

	s.offsets[path] = offset + int64(len(chunk))
	s.bytesRead += int64(len(chunk))

	baseLine := s.lineCounts[path]
	events, lineCount := s.match(string(chunk), path, baseLine)
	s.lineCounts[path] = baseLine + lineCount

	for _, event := range events {
		s.queue.Push(event)
		s.eventsEmitted++
	}
	return len(events), nil
}

// Match runs pattern matching over text as if it had been appended to
// sourcePath, without touching offsets or the queue. Used by one-shot
// scans and tests.
func (s *Scanner) Match(text, sourcePath string) []*ErrorEvent {
	events, _ := s.match(text, sourcePath, 0)
	return events
}

// match finds all pattern matches in text. Patterns are tried in
// registration order and each line yields at most one event, so specific
// signatures shadow the generic ones for the same entry. Returns the
// events and the number of lines consumed.
func (s *Scanner) match(text, sourcePath string, baseLine int) ([]*ErrorEvent, int) {
	lines := strings.Split(text, "\n")
	truncateLines(lines, s.config.MaxLineLength)
	text = strings.Join(lines, "\n")

	// Byte offset of each line start, for mapping match positions to lines.
	starts := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		starts[i] = pos
		pos += len(line) + 1
	}

	claimed := make([]bool, len(lines))
	var events []*ErrorEvent

	for _, p := range s.patterns.Patterns() {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			lineIdx := lineAt(starts, loc[0])
			if claimed[lineIdx] {
				continue
			}
			claimed[lineIdx] = true

			events = append(events, &ErrorEvent{
				ID:          uuid.New().String(),
				Timestamp:   time.Now(),
				SourcePath:  sourcePath,
				PatternName: p.Name,
				Severity:    p.DefaultSeverity,
				Category:    p.DefaultCategory,
				MatchedText: text[loc[0]:loc[1]],
				Context:     contextWindow(lines, lineIdx),
				LineNumber:  baseLine + lineIdx + 1,
				StackTrace:  extractStackTrace(lines, lineIdx),
			})
		}
	}

	// Events are produced pattern-major; re-sort into file order so a
	// single file's events stay offset-monotonic.
	sort.Slice(events, func(i, j int) bool {
		return events[i].LineNumber < events[j].LineNumber
	})

	// A chunk ending in a newline has not started its next line yet; the
	// trailing empty split element is not a consumed line.
	consumed := len(lines)
	if strings.HasSuffix(text, "\n") {
		consumed--
	}
	return events, consumed
}

// lineAt returns the index of the line containing byte offset pos.
func lineAt(starts []int, pos int) int {
	idx := sort.Search(len(starts), func(i int) bool { return starts[i] > pos })
	return idx - 1
}

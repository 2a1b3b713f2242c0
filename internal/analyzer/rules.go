package analyzer

import (
	"regexp"

	"github.com/logbug/logbug/internal/types"
)

// Classification is table-driven: ordered (predicate, outcome) pairs
// compiled once at startup and treated as immutable. Extending the
// classifier means appending rows, not adding branches.

// severityRule upgrades an analysis to at least Min when the pattern is
// present in the error text. Upgrades only; severity never moves down.
type severityRule struct {
	Pattern *regexp.Regexp
	Min     types.Severity
}

var severityRules = []severityRule{
	{regexp.MustCompile(`(?i)out of memory|oom[- ]?kill|cannot allocate memory|stack overflow`), types.SeverityCritical},
	{regexp.MustCompile(`(?i)segmentation fault|sigsegv|core dumped|fatal error|panic:`), types.SeverityCritical},
	{regexp.MustCompile(`(?i)data (?:loss|corruption)|corrupt(?:ed)? (?:database|index|file)`), types.SeverityCritical},
	{regexp.MustCompile(`(?i)connection (?:refused|reset|failed|closed)|no route to host|broken pipe`), types.SeverityHigh},
	{regexp.MustCompile(`(?i)(?:authentication|authorization) failed|permission denied|access denied|invalid (?:token|credentials)`), types.SeverityHigh},
	{regexp.MustCompile(`(?i)deadlock|race condition`), types.SeverityHigh},
	{regexp.MustCompile(`(?i)tim(?:ed?|e)[ -]?out|deadline exceeded`), types.SeverityMedium},
}

// rootCauseRule maps an error-text signature to a human-readable cause.
// First hit wins, so specific signatures come before generic ones.
type rootCauseRule struct {
	Pattern *regexp.Regexp
	Cause   string
}

var rootCauseRules = []rootCauseRule{
	{regexp.MustCompile(`(?i)'NoneType' object|NoneType.*has no attribute|null pointer|nil pointer dereference|NullPointerException`), "Nil or missing value dereferenced"},
	{regexp.MustCompile(`(?i)out of memory|oom[- ]?kill|cannot allocate memory`), "Process exhausted available memory"},
	{regexp.MustCompile(`(?i)no space left on device|disk (?:is )?full`), "Disk is full"},
	{regexp.MustCompile(`(?i)connection refused`), "Target service is down or not listening"},
	{regexp.MustCompile(`(?i)connection reset|broken pipe`), "Peer closed the connection mid-request"},
	{regexp.MustCompile(`(?i)too many open files`), "File descriptor limit exhausted"},
	{regexp.MustCompile(`(?i)tim(?:ed?|e)[ -]?out|deadline exceeded`), "Operation exceeded its time budget"},
	{regexp.MustCompile(`(?i)(?:authentication|authorization) failed|invalid (?:token|credentials)|401 unauthorized`), "Credentials are invalid or expired"},
	{regexp.MustCompile(`(?i)permission denied|access denied|403 forbidden`), "Caller lacks required permissions"},
	{regexp.MustCompile(`(?i)division by zero|ZeroDivisionError|divide by zero`), "Division by zero"},
	{regexp.MustCompile(`(?i)index out of (?:range|bounds)|IndexError`), "Index outside collection bounds"},
	{regexp.MustCompile(`(?i)KeyError|key not found|missing key`), "Expected key missing from map or config"},
	{regexp.MustCompile(`(?i)deadlock detected`), "Concurrent transactions deadlocked"},
	{regexp.MustCompile(`(?i)duplicate key|unique constraint`), "Unique constraint violated on insert"},
	{regexp.MustCompile(`(?i)no such file or directory|file not found|FileNotFoundError`), "Referenced file does not exist"},
}

// suggestedFixes maps a root cause to remediation text.
var suggestedFixes = map[string]string{
	"Nil or missing value dereferenced":        "Add a nil/None guard before the access and trace where the value failed to be set",
	"Process exhausted available memory":       "Profile memory usage, raise the limit, or bound the working set",
	"Disk is full":                             "Free disk space and add log rotation or retention for the offending volume",
	"Target service is down or not listening":  "Check the target service's health and the configured host/port",
	"Peer closed the connection mid-request":   "Add retry with backoff and inspect the peer's logs for the disconnect reason",
	"File descriptor limit exhausted":          "Close leaked handles and raise the ulimit if the load is legitimate",
	"Operation exceeded its time budget":       "Raise the timeout if the work is legitimate, or profile the slow path",
	"Credentials are invalid or expired":       "Rotate or refresh the credentials and verify the auth configuration",
	"Caller lacks required permissions":        "Grant the missing permission or run under the expected identity",
	"Division by zero":                         "Validate the divisor before dividing",
	"Index outside collection bounds":          "Validate the index against the collection length before access",
	"Expected key missing from map or config":  "Provide the missing key or fall back to a default",
	"Concurrent transactions deadlocked":       "Acquire locks in a consistent order or shorten transactions",
	"Unique constraint violated on insert":     "Use an upsert or check for the existing row before inserting",
	"Referenced file does not exist":           "Verify the path and ensure the file is created before it is read",
}

// fixHeuristic supplies a suggestion when no root cause matched.
type fixHeuristic struct {
	Pattern *regexp.Regexp
	Fix     string
}

var fixHeuristics = []fixHeuristic{
	{regexp.MustCompile(`(?i)\b404\b|not found`), "Verify the request path and that the route or resource is registered"},
	{regexp.MustCompile(`(?i)\b5\d\d\b|internal server error`), "Inspect the upstream server logs around the failure timestamp"},
	{regexp.MustCompile(`(?i)\basync\b|\bawait\b|coroutine`), "Check that the coroutine is awaited and the event loop is running"},
	{regexp.MustCompile(`(?i)deadlock|lock contention`), "Review lock acquisition order across the involved goroutines or threads"},
}

// componentRule scores a known component against the event's path and text.
type componentRule struct {
	Name    string
	Pattern *regexp.Regexp
}

var componentRules = []componentRule{
	{"api", regexp.MustCompile(`(?i)\bapi\b|handler|endpoint|\broute\b|http[_ ]?server|request`)},
	{"database", regexp.MustCompile(`(?i)database|\bsql\b|\bquery\b|postgres|mysql|sqlite|\bdb\b|transaction`)},
	{"auth", regexp.MustCompile(`(?i)\bauth\b|login|token|credential|session|oauth|permission`)},
	{"cache", regexp.MustCompile(`(?i)\bcache\b|redis|memcache`)},
	{"queue", regexp.MustCompile(`(?i)\bqueue\b|worker|\bjob\b|\btask\b|consumer|kafka|rabbit`)},
	{"network", regexp.MustCompile(`(?i)connection|socket|\btcp\b|\budp\b|\bdns\b|proxy|upstream`)},
	{"storage", regexp.MustCompile(`(?i)\bdisk\b|filesystem|file not found|no space|\bs3\b|bucket`)},
	{"frontend", regexp.MustCompile(`(?i)frontend|\bui\b|browser|javascript|\breact\b`)},
}

// componentVocabulary maps path segments to components for the fallback
// lookup when no rule scores.
var componentVocabulary = map[string]string{
	"api":      "api",
	"handlers": "api",
	"routes":   "api",
	"db":       "database",
	"database": "database",
	"models":   "database",
	"auth":     "auth",
	"cache":    "cache",
	"workers":  "queue",
	"jobs":     "queue",
	"net":      "network",
	"static":   "frontend",
	"web":      "frontend",
}

package analyzer

import (
	"regexp"
	"strings"
)

// Best-effort extraction of structured details from error text. Every
// field is optional and omitted when absent.
var (
	lineNumberRe = regexp.MustCompile(`(?i)\bline (\d+)\b|\.\w{1,4}:(\d+)`)
	functionRe   = regexp.MustCompile(`(?i)\bin (\w+)\(|\bin (\w+)$|\bat ([\w.$]+)\(`)
	ipRe         = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?\b`)
	urlRe        = regexp.MustCompile(`https?://[^\s"')]+`)
	dbObjectRe   = regexp.MustCompile(`(?i)\b(?:table|column|relation|index|constraint)\s+"?([\w.]+)"?`)
	durationRe   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s?(ms|milliseconds|s|sec|seconds|m|minutes)\b`)
	sizeRe       = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s?(bytes|kb|mb|gb|kib|mib|gib)\b`)

	// Path-like tokens inside stack traces.
	pathTokenRe = regexp.MustCompile(`[\w@~./\\-]+\.(?:py|go|js|ts|jsx|tsx|java|rb|php|c|h|cc|cpp|cs|rs|kt|swift)\b`)
	// Import-like statements in the surrounding context.
	importRe = regexp.MustCompile(`(?m)^\s*(?:import|from|require|include)\s+["']?([\w./@-]+)`)
)

// extractMetadata pulls optional structured fields out of the combined
// matched text, context, and trace.
func extractMetadata(text string) map[string]string {
	meta := make(map[string]string)

	if m := lineNumberRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			meta["line_number"] = m[1]
		} else {
			meta["line_number"] = m[2]
		}
	}
	if m := functionRe.FindStringSubmatch(text); m != nil {
		for _, group := range m[1:] {
			if group != "" {
				meta["function"] = group
				break
			}
		}
	}
	if m := ipRe.FindString(text); m != "" {
		meta["ip_address"] = m
	}
	if m := urlRe.FindString(text); m != "" {
		meta["url"] = m
	}
	if m := dbObjectRe.FindStringSubmatch(text); m != nil {
		meta["db_object"] = m[1]
	}
	if m := durationRe.FindStringSubmatch(text); m != nil {
		meta["duration"] = m[1] + m[2]
	}
	if m := sizeRe.FindStringSubmatch(text); m != nil {
		meta["size"] = m[1] + m[2]
	}

	if len(meta) == 0 {
		return nil
	}
	return meta
}

// relatedFiles collects the source path, path-like tokens from the stack
// trace, and import statements from the context, deduplicated in
// first-seen order.
func relatedFiles(sourcePath, stackTrace, context string) []string {
	seen := make(map[string]bool)
	var files []string

	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			return
		}
		seen[f] = true
		files = append(files, f)
	}

	add(sourcePath)
	for _, tok := range pathTokenRe.FindAllString(stackTrace, -1) {
		add(tok)
	}
	for _, m := range importRe.FindAllStringSubmatch(context, -1) {
		add(m[1])
	}
	return files
}

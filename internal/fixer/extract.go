package fixer

import "strings"

// maxExtracted caps how many error lines end up in the prompt; beyond
// that the raw log tail carries the rest.
const maxExtracted = 40

// errorMarkers are matched case-insensitively against each log line.
var errorMarkers = []string{
	"error",
	"panic:",
	"fatal",
	"exception",
	"traceback",
	"failed",
	"cannot ",
	"undefined",
	"not found",
}

// ExtractErrors scans raw deployment logs for lines that look like
// errors and returns them in order, trimmed and de-duplicated. This is
// a best-effort heuristic: an empty result is valid and remediation
// still proceeds with the raw logs.
func ExtractErrors(logs string) []string {
	if strings.TrimSpace(logs) == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	inTraceback := false

	for _, raw := range strings.Split(logs, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			inTraceback = false
			continue
		}

		matched := matchesMarker(trimmed)

		// Indented lines directly under a traceback/panic header belong
		// to the same error.
		continuation := inTraceback && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"))

		if !matched && !continuation {
			inTraceback = false
			continue
		}
		if matched {
			lower := strings.ToLower(trimmed)
			inTraceback = strings.Contains(lower, "traceback") || strings.Contains(lower, "panic:")
		}

		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
		if len(out) >= maxExtracted {
			break
		}
	}
	return out
}

func matchesMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

package reconcile

import (
	"regexp"
	"strings"
)

var (
	// a fenced block whose content is a single object, optionally tagged json
	fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	// first opening brace through last closing brace
	outerObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extract isolates the JSON candidate in a raw completion. A fenced object
// wins over a bare object; with neither, the trimmed text is returned as is.
// Extract(Extract(s)) == Extract(s) for any s it accepts.
func Extract(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyCompletion
	}

	if m := fencedObject.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if m := outerObject.FindString(raw); m != "" {
		return m, nil
	}
	return strings.TrimSpace(raw), nil
}

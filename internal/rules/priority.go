package rules

import (
	"fmt"
	"strings"
)

// priorityTable is the case-insensitive mapping from priority name to the
// small integer scale the rules engine host understands. INFO/info alias to
// the same numeric value as Informational, matching the documented aliasing.
var priorityTable = map[string]int{
	"emergency":     0,
	"alert":         1,
	"critical":      2,
	"error":         3,
	"warning":       4,
	"notice":        5,
	"informational": 6,
	"info":          6,
	"debug":         7,
}

// ResolvePriority looks up the numeric priority for a case-permissive name.
// An unknown name is a fatal schema error.
func ResolvePriority(name string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	num, ok := priorityTable[key]
	if !ok {
		return 0, fmt.Errorf("rules: unknown priority %q", name)
	}
	return num, nil
}

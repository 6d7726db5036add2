package rules

import "strings"

// SourceMap slices raw rules text into non-empty lines and remembers the
// 1-based line index at which every top-level document item begins, so
// later error messages can render the original YAML slice for context.
type SourceMap struct {
	lines   []string
	indices []int
}

// NewSourceMap builds a SourceMap over raw rules text. Fully empty lines are
// dropped from lines; document separators ("---") are recognized but never
// treated as the start of an item.
func NewSourceMap(content string) *SourceMap {
	sm := &SourceMap{}
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		sm.lines = append(sm.lines, line)
		if isItemStart(line) {
			sm.indices = append(sm.indices, len(sm.lines))
		}
	}
	sm.indices = append(sm.indices, len(sm.lines)+1)
	return sm
}

// isItemStart reports whether line opens a new top-level document item:
// it starts with '-' but is not a "---" document separator.
func isItemStart(line string) bool {
	if len(line) == 0 || line[0] != '-' {
		return false
	}
	return !strings.HasPrefix(line, "---")
}

// Indices returns the recorded item-start line numbers, including the
// trailing sentinel equal to len(lines)+1.
func (sm *SourceMap) Indices() []int {
	return sm.indices
}

// Context reconstructs the original YAML slice for the item beginning at
// 1-based line r: every line from r up to (but excluding) the next blank
// line or line starting with '-', with a trailing blank line appended.
func (sm *SourceMap) Context(r int) string {
	if r < 1 || r > len(sm.lines) {
		return "\n"
	}
	var b strings.Builder
	for i := r - 1; i < len(sm.lines); i++ {
		line := sm.lines[i]
		if i != r-1 && (line == "" || strings.HasPrefix(line, "-")) {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatError renders the standard "<message>\n---\n<slice>---" error
// format used throughout the loader.
func FormatError(message, context string) string {
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n---\n")
	b.WriteString(context)
	b.WriteString("---")
	return b.String()
}

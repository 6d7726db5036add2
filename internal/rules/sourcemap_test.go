package rules

import (
	"strings"
	"testing"
)

func TestSourceMapIndicesSkipSeparatorsAndAppendSentinel(t *testing.T) {
	content := `---
- rule: first
  desc: one

---
- rule: second
  desc: two
`
	sm := NewSourceMap(content)
	indices := sm.Indices()

	// Two items plus the trailing sentinel; "---" separators and the blank
	// line are never counted as item starts.
	if len(indices) != 3 {
		t.Fatalf("expected two item indices plus a sentinel, got %v", indices)
	}
	// The blank line is dropped, so six lines remain and the sentinel is 7.
	if got := indices[len(indices)-1]; got != 7 {
		t.Fatalf("expected sentinel len(lines)+1 = 7, got %d", got)
	}
	if indices[0] >= indices[1] {
		t.Fatalf("expected item indices in ascending order, got %v", indices)
	}
}

func TestSourceMapContextSlicesSingleItem(t *testing.T) {
	content := `- rule: first
  desc: one
- rule: second
  desc: two
`
	sm := NewSourceMap(content)
	indices := sm.Indices()
	if len(indices) != 3 {
		t.Fatalf("expected two items plus sentinel, got %v", indices)
	}

	first := sm.Context(indices[0])
	if !strings.Contains(first, "rule: first") || strings.Contains(first, "rule: second") {
		t.Fatalf("expected first item's slice only, got %q", first)
	}
	if !strings.HasSuffix(first, "\n\n") {
		t.Fatalf("expected a trailing blank line on the slice, got %q", first)
	}

	second := sm.Context(indices[1])
	if !strings.Contains(second, "rule: second") || strings.Contains(second, "rule: first") {
		t.Fatalf("expected second item's slice only, got %q", second)
	}
}

func TestSourceMapContextOutOfRange(t *testing.T) {
	sm := NewSourceMap("- rule: only\n")
	if got := sm.Context(99); got != "\n" {
		t.Fatalf("expected the empty-slice sentinel for an out-of-range row, got %q", got)
	}
}

func TestFormatErrorLayout(t *testing.T) {
	got := FormatError("rules: something broke", "- rule: r\n\n")
	want := "rules: something broke\n---\n- rule: r\n\n---"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

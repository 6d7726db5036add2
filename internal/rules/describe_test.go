package rules

import (
	"bytes"
	"strings"
	"testing"
)

func TestDescribeRuleSingleLineFormatAndWrapAlignment(t *testing.T) {
	desc := "write below etc dir attempt by a non trusted program after startup or by a trusted program after a sensitive file was opened for reading"

	cat := NewCatalog()
	cat.OrderedRuleNames = []string{"short_rule"}
	cat.RulesByName["short_rule"] = &RuleRecord{Name: "short_rule", Desc: desc}

	var buf bytes.Buffer
	if err := DescribeRule(&buf, cat, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	wrapped := wordWrap(desc, describeDescWidth)
	if len(lines) != 1+len(wrapped) {
		t.Fatalf("expected a header plus %d description lines, got %v", len(wrapped), lines)
	}

	header := lines[0]
	if got, want := header[:describeNameWidth], padRight("Rule", describeNameWidth); got != want {
		t.Fatalf("header name column = %q, want %q", got, want)
	}
	if got, want := header[describeNameWidth:], "Description"; got != want {
		t.Fatalf("header description column = %q, want %q", got, want)
	}

	firstLine := lines[1]
	if got, want := firstLine[:describeNameWidth], padRight("short_rule", describeNameWidth); got != want {
		t.Fatalf("rule name column = %q, want %q", got, want)
	}
	if got, want := firstLine[describeNameWidth:], wrapped[0]; got != want {
		t.Fatalf("first description segment = %q, want %q", got, want)
	}

	// Continuation lines must be blank-padded under the name column so the
	// wrapped description aligns under the header's Description column.
	for i, want := range wrapped[1:] {
		line := lines[2+i]
		if got := line[:describeNameWidth]; strings.TrimRight(got, " ") != "" {
			t.Fatalf("continuation line %q is not blank-padded under the name column", line)
		}
		if got := line[describeNameWidth:]; got != want {
			t.Fatalf("continuation description segment = %q, want %q", got, want)
		}
	}
}

func TestDescribeRuleByNameDescribesOnlyThatRule(t *testing.T) {
	cat := NewCatalog()
	cat.OrderedRuleNames = []string{"a", "b"}
	cat.RulesByName["a"] = &RuleRecord{Name: "a", Desc: "alpha"}
	cat.RulesByName["b"] = &RuleRecord{Name: "b", Desc: "beta"}

	name := "b"
	var buf bytes.Buffer
	if err := DescribeRule(&buf, cat, &name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "alpha") {
		t.Fatalf("expected only rule %q described, got %q", name, out)
	}
	if !strings.Contains(out, "beta") {
		t.Fatalf("expected rule %q's description present, got %q", name, out)
	}
}

func TestDescribeRuleUnknownNameIsError(t *testing.T) {
	cat := NewCatalog()
	name := "nonexistent"
	var buf bytes.Buffer
	if err := DescribeRule(&buf, cat, &name); err == nil {
		t.Fatalf("expected an error for an unknown rule name")
	}
}

func TestDescribeRuleSkippedNameReportsSkipped(t *testing.T) {
	cat := NewCatalog()
	cat.SkippedRulesByName["quiet_rule"] = &RuleRecord{Name: "quiet_rule"}
	name := "quiet_rule"

	var buf bytes.Buffer
	if err := DescribeRule(&buf, cat, &name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "skipped") {
		t.Fatalf("expected a skipped-rule message, got %q", buf.String())
	}
}

func TestWordWrapNeverSplitsAWord(t *testing.T) {
	lines := wordWrap("the quick brown fox jumps over the lazy dog", 10)
	for _, line := range lines {
		if len(line) > 10 {
			t.Fatalf("line %q exceeds width 10", line)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps over the lazy dog" {
		t.Fatalf("word-wrapping lost or reordered words: %v", lines)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

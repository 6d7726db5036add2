package rules

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// describeNameWidth is the name column's left-padded width; describeDescWidth
// is the word-wrap width applied to desc, with continuation lines indented
// by describeNameWidth so they align under the description column.
const (
	describeNameWidth = 50
	describeDescWidth = 60
)

// DescribeRule writes a header followed by one line per rule: name, then a
// word-wrapped desc with continuation lines aligned under the description
// column. If name is nil every rule is described in first-appearance order;
// otherwise a missing (and not merely priority-skipped) name is an error.
func DescribeRule(w io.Writer, cat *Catalog, name *string) error {
	var toDescribe []*RuleRecord
	if name != nil {
		rule, ok := cat.RulesByName[*name]
		if !ok {
			if _, skipped := cat.SkippedRulesByName[*name]; skipped {
				fmt.Fprintf(w, "%s: skipped (priority below threshold)\n", *name)
				return nil
			}
			return fmt.Errorf("rules: no such rule %q", *name)
		}
		toDescribe = []*RuleRecord{rule}
	} else {
		for _, n := range cat.OrderedRuleNames {
			if rule, ok := cat.RulesByName[n]; ok {
				toDescribe = append(toDescribe, rule)
			}
		}
	}

	fmt.Fprintf(w, "%-*s%s\n", describeNameWidth, "Rule", "Description")
	for _, rule := range toDescribe {
		writeRuleDescriptionLine(w, rule)
	}
	return nil
}

// writeRuleDescriptionLine writes rule's name left-padded to
// describeNameWidth followed by its word-wrapped desc, with continuation
// lines indented by describeNameWidth spaces so they align under the
// description column.
func writeRuleDescriptionLine(w io.Writer, rule *RuleRecord) {
	lines := wordWrap(rule.Desc, describeDescWidth)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(w, "%-*s%s\n", describeNameWidth, rule.Name, lines[0])
	indent := strings.Repeat(" ", describeNameWidth)
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "%s%s\n", indent, line)
	}
}

// wordWrap greedily wraps text into lines of at most width columns, never
// splitting a word.
func wordWrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var b strings.Builder
	lineLen := 0
	for i, word := range words {
		if i > 0 && lineLen+1+len(word) > width {
			lines = append(lines, b.String())
			b.Reset()
			lineLen = 0
		} else if i > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	lines = append(lines, b.String())
	return lines
}

// PrintStats writes a snapshot of stats to w: the running total, broken down
// by priority number (ascending, i.e. most severe first) and by rule name
// (alphabetical).
func PrintStats(w io.Writer, stats *Stats) {
	fmt.Fprintf(w, "Total events matched: %d\n", stats.Total)

	priorities := make([]int, 0, len(stats.ByPriority))
	for p := range stats.ByPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	for _, p := range priorities {
		fmt.Fprintf(w, "  priority %d: %d\n", p, stats.ByPriority[p])
	}

	names := make([]string, 0, len(stats.ByName))
	for n := range stats.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s: %d\n", n, stats.ByName[n])
	}
}

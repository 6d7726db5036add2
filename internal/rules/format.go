package rules

import "strings"

// Quote conditionally wraps a string value in double quotes: if it contains
// a space and does not already begin with a quote character, it is wrapped;
// otherwise it is returned unchanged.
func Quote(s string) string {
	if strings.Contains(s, " ") && !strings.HasPrefix(s, "'") && !strings.HasPrefix(s, "\"") {
		return "\"" + s + "\""
	}
	return s
}

// Parenthesize wraps s in parentheses unless it already starts with one.
func Parenthesize(s string) string {
	if strings.HasPrefix(s, "(") {
		return s
	}
	return "(" + s + ")"
}

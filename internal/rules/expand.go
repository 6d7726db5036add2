package rules

import "strings"

// expandLists resolves every list's items into cat.CompiledLists, in
// declaration order. An item naming a list already present in compiled (i.e.
// one declared and expanded earlier) splices in that list's expanded items;
// any other item, including a forward reference to a list not yet expanded,
// is treated as a literal and rendered through expandUnresolvedListToken,
// exactly as a condition literal would be quoted.
func expandLists(cat *Catalog) CompiledLists {
	compiled := make(CompiledLists, len(cat.ListsByName))

	for _, name := range cat.OrderedListNames {
		rec, ok := cat.ListsByName[name]
		if !ok {
			continue
		}
		var out []string
		for _, item := range rec.Items {
			if sub, already := compiled[item]; already {
				if subRec, isList := cat.ListsByName[item]; isList {
					subRec.Used = true
				}
				out = append(out, sub...)
				continue
			}
			out = append(out, expandUnresolvedListToken(item))
		}
		compiled[name] = out
	}
	return compiled
}

// expandUnresolvedListToken renders name as a literal when it appears as a
// list item but does not name a list expanded earlier: Quote applies the
// same space-conditional rule used for multi-field exception cells.
func expandUnresolvedListToken(name string) string {
	return Quote(name)
}

// unusedNames returns, in first-appearance order, every name in ordered
// whose Used flag (read via isUsed) is false.
func unusedNames(ordered []string, isUsed func(name string) bool) []string {
	var out []string
	for _, n := range ordered {
		if !isUsed(n) {
			out = append(out, n)
		}
	}
	return out
}

// collectUnusedWarnings builds the end-of-pass "not referred to" warnings
// for macros and lists that no rule or other macro ever referenced.
func collectUnusedWarnings(cat *Catalog) []string {
	var warnings []string
	for _, name := range unusedNames(cat.OrderedMacroNames, func(n string) bool { return cat.MacrosByName[n].Used }) {
		warnings = append(warnings, "rules: macro \""+name+"\" not referred to by any rule, macro or exception")
	}
	for _, name := range unusedNames(cat.OrderedListNames, func(n string) bool { return cat.ListsByName[n].Used }) {
		warnings = append(warnings, "rules: list \""+name+"\" not referred to by any rule, macro, exception or other list")
	}
	return warnings
}

// markFieldTokensUsed scans condition for bare-word occurrences of each
// known list or macro name and marks it used. The filter compiler resolves
// the actual reference graph during CompileMacro/CompileFilter; this is a
// best-effort textual pass used only to seed Used prior to compilation so
// unresolved-forward-reference literals (not yet defined when referenced)
// are still flagged correctly once their definition is seen.
func markFieldTokensUsed(condition string, cat *Catalog) {
	for name, l := range cat.ListsByName {
		if containsToken(condition, name) {
			l.Used = true
		}
	}
	for name, m := range cat.MacrosByName {
		if containsToken(condition, name) {
			m.Used = true
		}
	}
}

func containsToken(haystack, token string) bool {
	idx := strings.Index(haystack, token)
	for idx != -1 {
		before := idx == 0 || !isIdentByte(haystack[idx-1])
		after := idx+len(token) >= len(haystack) || !isIdentByte(haystack[idx+len(token)])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], token)
		if next == -1 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

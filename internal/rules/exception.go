package rules

import (
	"fmt"
	"strings"
)

// LowerExceptions converts rule's declarative exceptions into the derived
// boolean fragment conjoined with " and not " onto the rule's condition,
// storing the result on CompileCondition and recording every referenced
// field name in ExceptionFields.
func LowerExceptions(rule *RuleRecord) error {
	fields := make(map[string]struct{})
	var fragments []string
	for _, item := range rule.Exceptions {
		for _, f := range item.Fields {
			fields[f] = struct{}{}
		}
		frag, err := lowerException(item)
		if err != nil {
			return fmt.Errorf("rule %q: exception %q: %w", rule.Name, item.Name, err)
		}
		if frag == "" {
			continue
		}
		fragments = append(fragments, frag)
	}
	rule.ExceptionFields = fields
	if len(fragments) == 0 {
		rule.CompileCondition = rule.Condition
		return nil
	}
	econd := " and not " + strings.Join(fragments, " and not ")
	rule.CompileCondition = "(" + rule.Condition + ")" + econd
	return nil
}

// lowerException renders a single exception item's sub-expression, or ""
// if it carries no values to contribute.
func lowerException(item ExceptionItem) (string, error) {
	if item.Single {
		return lowerSingleFieldException(item)
	}
	return lowerMultiFieldException(item)
}

func lowerSingleFieldException(item ExceptionItem) (string, error) {
	if len(item.SingleValues) == 0 {
		return "", nil
	}
	if len(item.Fields) != 1 || len(item.Comps) != 1 {
		return "", fmt.Errorf("single-field exception must have exactly one field and comparator")
	}
	quoted := make([]string, len(item.SingleValues))
	for i, v := range item.SingleValues {
		quoted[i] = quoteExceptionValue(v)
	}
	inner := fmt.Sprintf("%s %s (%s)", item.Fields[0], item.Comps[0], strings.Join(quoted, ", "))
	return "(" + inner + ")", nil
}

func lowerMultiFieldException(item ExceptionItem) (string, error) {
	if len(item.MultiValues) == 0 {
		return "", nil
	}
	n := len(item.Fields)
	if len(item.Comps) != n {
		return "", fmt.Errorf("multi-field exception fields/comps length mismatch")
	}
	groups := make([]string, 0, len(item.MultiValues))
	for _, tuple := range item.MultiValues {
		if len(tuple) != n {
			return "", fmt.Errorf("exception value tuple length %d does not match %d fields", len(tuple), n)
		}
		clauses := make([]string, n)
		for k := 0; k < n; k++ {
			field := item.Fields[k]
			comp := item.Comps[k]
			clauses[k] = fmt.Sprintf("%s %s %s", field, comp, renderExceptionCell(tuple[k], comp))
		}
		groups = append(groups, "("+strings.Join(clauses, " and ")+")")
	}
	return "(" + strings.Join(groups, " or ") + ")", nil
}

// quoteExceptionValue always double-quotes a single-field exception value
// (unless it is already quoted), unlike the general-purpose Quote helper
// which only quotes values containing a space. Single-field "in" clauses
// are rendered as a literal string tuple regardless of whether individual
// members contain spaces.
func quoteExceptionValue(s string) string {
	if strings.HasPrefix(s, "'") || strings.HasPrefix(s, "\"") {
		return s
	}
	return "\"" + s + "\""
}

func renderExceptionCell(cell ExceptionCell, comp string) string {
	if cell.IsList() {
		quoted := make([]string, len(cell.List))
		for i, v := range cell.List {
			quoted[i] = Quote(v)
		}
		return "(" + strings.Join(quoted, ", ") + ")"
	}
	if IsListOperator(comp) {
		return Parenthesize(cell.Scalar)
	}
	return Quote(cell.Scalar)
}

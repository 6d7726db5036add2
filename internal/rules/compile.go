package rules

import (
	"fmt"
	"strings"
)

// CompileResult is the non-fatal outcome of Pass 2b: the warnings collected
// while compiling macros and rules, on top of whatever Pass 1 already
// accumulated in LoadResult.Warnings.
type CompileResult struct {
	Warnings []string
}

// Compile drives Pass 2b: it resets the catalog's derived state and the
// host's filter storage, expands lists, compiles macros in first-appearance
// order, then compiles rules in first-appearance order, registering each
// compiled filter with host and assigning it a dense 1-based index.
func Compile(cat *Catalog, host RulesEngineHost, compiler FilterCompiler, opts LoadOptions) (CompileResult, error) {
	var result CompileResult

	cat.ResetForRecompile()
	host.ClearFilters()
	cat.CompiledLists = expandLists(cat)

	compiledMacros := make(CompiledMacros, len(cat.OrderedMacroNames))
	for _, name := range cat.OrderedMacroNames {
		macro := cat.MacrosByName[name]
		markFieldTokensUsed(macro.Condition, cat)
		ast, err := compiler.CompileMacro(macro.Condition, compiledMacros, cat.CompiledLists)
		if err != nil {
			return result, fmt.Errorf("rules: macro %q: %s", name, FormatError(err.Error(), macro.Context))
		}
		macro.AST = ast
		compiledMacros[name] = ast
	}

	for _, name := range cat.OrderedRuleNames {
		rule, ok := cat.RulesByName[name]
		if !ok {
			// Name graduated into skipped_rules_by_name after Pass 1's
			// priority gating; Pass 2b only compiles active rules.
			continue
		}
		warning, err := compileRule(cat, rule, host, compiler, opts, compiledMacros)
		if err != nil {
			return result, err
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	for _, name := range cat.warnEvtTypesZero {
		result.Warnings = append(result.Warnings, fmt.Sprintf("rules: rule %q matches too few or too many event types", name))
	}
	result.Warnings = append(result.Warnings, collectUnusedWarnings(cat)...)
	return result, nil
}

// compileRule compiles and registers a single rule. It returns a non-empty
// warning (with a nil error) for the two non-fatal outcomes: an invalid
// event source, and a filter-builder walk failure swallowed by
// skip-if-unknown-filter. Any other failure is returned as an error and
// aborts the load.
func compileRule(cat *Catalog, rule *RuleRecord, host RulesEngineHost, compiler FilterCompiler, opts LoadOptions, macros CompiledMacros) (string, error) {
	if err := LowerExceptions(rule); err != nil {
		return "", fmt.Errorf("rules: rule %q: %w", rule.Name, err)
	}
	markFieldTokensUsed(rule.CompileCondition, cat)

	root, err := compiler.CompileFilter(rule.Name, rule.CompileCondition, macros, cat.CompiledLists)
	if err != nil {
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError(err.Error(), rule.Context))
	}
	if !root.IsRule {
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError("compiled condition is not rule-typed", rule.Context))
	}

	// An invalid source is a warning, not a load-aborting error; the rule
	// is dropped without ever incrementing NRules.
	if !host.IsSourceValid(rule.Source) {
		return fmt.Sprintf("rules: rule %q: unknown event source %q, rule skipped", rule.Name, rule.Source), nil
	}

	ruleIdx := cat.NRules + 1
	stampRelIndices(root.AST, ruleIdx)

	parser, err := host.CreateParser(rule.Source)
	if err != nil {
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError(err.Error(), rule.Context))
	}
	if err := walkFilterBuilder(parser, root.AST, ""); err != nil {
		// skip-if-unknown-filter only swallows a walk failure that names a
		// nonexistent field; anything else still aborts.
		if rule.SkipIfUnknownFilter && mentionsNonexistentField(err) {
			return fmt.Sprintf("rules: rule %q: skipped, unknown filter field: %v", rule.Name, err), nil
		}
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError(err.Error(), rule.Context))
	}

	numEvtTypes, err := host.AddFilter(parser, rule.Name, rule.Source, rule.SortedTags())
	if err != nil {
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError(err.Error(), rule.Context))
	}
	if rule.Source == "syscall" && !opts.AllEvents && (numEvtTypes == 0 || numEvtTypes > 100) && rule.WarnEvtTypes {
		cat.warnEvtTypesZero = append(cat.warnEvtTypesZero, rule.Name)
	}

	host.EnableRule(rule.Name, rule.Enabled)

	rule.Output = applyContainerInfoPolicy(rule.Output, rule.Source, opts.Extra, opts.ReplaceContainerInfo)
	rule.Output = compiler.Trim(rule.Output)
	if err := host.IsFormatValid(rule.Source, rule.Output); err != nil {
		return "", fmt.Errorf("rules: rule %q: %s", rule.Name, FormatError(fmt.Sprintf("invalid output format: %v", err), rule.Context))
	}

	cat.NRules = ruleIdx
	rule.indexAssigned = ruleIdx
	cat.RulesByIdx = append(cat.RulesByIdx, rule)
	return "", nil
}

// mentionsNonexistentField reports whether err's message names a field the
// host does not recognize, the condition under which skip-if-unknown-filter
// is allowed to swallow a filter-builder walk failure.
func mentionsNonexistentField(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonexistent field") || strings.Contains(msg, "unknown field") || strings.Contains(msg, "undefined field")
}

// stampRelIndices walks ast depth-first, assigning every relational node
// (BinaryRelOp/UnaryRelOp) the rule's own dense index: all relational nodes
// belonging to one rule share a single idx so the runtime can map a
// reported match straight back to RulesByIdx[idx] in O(1).
func stampRelIndices(ast Node, idx int) {
	var walk func(n Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *BinaryBoolOp:
			walk(v.Left)
			walk(v.Right)
		case *UnaryBoolOp:
			walk(v.Arg)
		case *BinaryRelOp:
			v.Index = idx
		case *UnaryRelOp:
			v.Index = idx
		}
	}
	walk(ast)
}

// walkFilterBuilder emits the Nest/Unnest/BoolOp/RelExpr call stream for ast
// onto parser. activeOp tracks the innermost boolean operator already
// nested so that a run of the same associative operator (and/or) does not
// open a redundant nest/unnest pair.
func walkFilterBuilder(parser ParserBuilder, ast Node, activeOp BoolOperator) error {
	switch v := ast.(type) {
	case *BinaryBoolOp:
		sameOp := v.Op == activeOp
		if !sameOp {
			if err := parser.Nest(); err != nil {
				return err
			}
		}
		if err := walkFilterBuilder(parser, v.Left, v.Op); err != nil {
			return err
		}
		if err := parser.BoolOp(v.Op); err != nil {
			return err
		}
		if err := walkFilterBuilder(parser, v.Right, v.Op); err != nil {
			return err
		}
		if !sameOp {
			if err := parser.Unnest(); err != nil {
				return err
			}
		}
		return nil
	case *UnaryBoolOp:
		if err := parser.Nest(); err != nil {
			return err
		}
		if err := parser.BoolOp(v.Op); err != nil {
			return err
		}
		if err := walkFilterBuilder(parser, v.Arg, ""); err != nil {
			return err
		}
		if err := parser.Unnest(); err != nil {
			return err
		}
		return nil
	case *BinaryRelOp:
		return parser.RelExpr(v.Field, v.Op, v.Value, v.Index)
	case *UnaryRelOp:
		return parser.RelExpr(v.Field, v.Op, RelValue{}, v.Index)
	default:
		return fmt.Errorf("unrecognized AST node %T", ast)
	}
}

// applyContainerInfoPolicy rewrites the well-known "%container.info"
// placeholder for syscall-sourced rules:
// when a caller-supplied extra template exists and replaceContainerInfo is
// set, %container.info is substituted with extra; otherwise it expands to
// the default "%container.name (id=%container.id)" with extra appended
// when non-empty. An output with no %container.info placeholder still gets
// extra appended, when extra is non-empty.
func applyContainerInfoPolicy(output, source, extra string, replaceContainerInfo bool) string {
	if source != "syscall" {
		return output
	}
	const placeholder = "%container.info"
	if !strings.Contains(output, placeholder) {
		if extra != "" {
			return output + " " + extra
		}
		return output
	}
	if extra != "" && replaceContainerInfo {
		return strings.ReplaceAll(output, placeholder, extra)
	}
	replaced := strings.ReplaceAll(output, placeholder, "%container.name (id=%container.id)")
	if extra != "" {
		replaced += " " + extra
	}
	return replaced
}

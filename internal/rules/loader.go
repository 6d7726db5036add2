package rules

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions carries the caller-supplied knobs the Load API documents:
// MinPriority gates which rules are compiled versus quarantined into
// skipped_rules_by_name (a rule loads when its resolved priority number is
// <= MinPriority), and AllEvents suppresses the too-broad-event-type-match
// warning for hosts that capture every event anyway.
type LoadOptions struct {
	AllEvents            bool
	Extra                string
	ReplaceContainerInfo bool
	MinPriority          int
}

// LoadResult is the non-fatal outcome of a load: the maximum required
// engine version seen, accumulated plugin version requirements, and every
// warning raised along the way (structural, schema and composition problems
// abort the load; everything else becomes a warning here).
type LoadResult struct {
	RequiredEngineVersion  uint64
	RequiredPluginVersions map[string][]string
	Warnings               []string
}

var yamlErrPrefix = regexp.MustCompile(`^(\d+):(\d+):\s*`)

// loadPass1 walks the YAML documents in content and populates cat,
// classifying and validating each top-level item. It returns as soon as a
// structural, schema or composition error is encountered.
func loadPass1(content string, host RulesEngineHost, opts LoadOptions, cat *Catalog) (LoadResult, error) {
	result := LoadResult{RequiredPluginVersions: map[string][]string{}}
	sm := NewSourceMap(content)

	if strings.TrimSpace(content) == "" {
		return result, nil
	}

	indices := sm.Indices()
	itemPos := 0
	nextContext := func() string {
		if itemPos >= len(indices)-1 {
			return "\n"
		}
		line := indices[itemPos]
		itemPos++
		return sm.Context(line)
	}

	dec := yaml.NewDecoder(strings.NewReader(content))
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, errors.New(formatYAMLError(err))
		}
		if doc == nil {
			continue
		}
		items, ok := doc.([]any)
		if !ok {
			return result, errors.New(FormatError("rules: document must be a YAML array of mappings", "\n"))
		}
		for _, raw := range items {
			ctx := nextContext()
			mapping, ok := raw.(map[string]any)
			if !ok {
				return result, errors.New(FormatError("rules: array element must be a mapping", ctx))
			}
			if err := processItem(cat, mapping, ctx, host, opts, &result); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func formatYAMLError(err error) string {
	msg := err.Error()
	if m := yamlErrPrefix.FindStringSubmatch(msg); m != nil {
		msg = msg[len(m[0]):]
	}
	return FormatError("rules: "+msg, "\n")
}

// processItem classifies and dispatches a single top-level document item by
// key precedence: required_engine_version, required_plugin_versions, macro,
// list, rule.
func processItem(cat *Catalog, item map[string]any, ctx string, host RulesEngineHost, opts LoadOptions, result *LoadResult) error {
	switch {
	case hasKey(item, "required_engine_version"):
		return processRequiredEngineVersion(item, ctx, host, result)
	case hasKey(item, "required_plugin_versions"):
		return processRequiredPluginVersions(item, ctx, result)
	case hasKey(item, "macro"):
		return processMacro(cat, item, ctx)
	case hasKey(item, "list"):
		return processList(cat, item, ctx)
	case hasKey(item, "rule"):
		return processRule(cat, item, ctx, host, opts, result)
	default:
		result.Warnings = append(result.Warnings, FormatError("rules: unrecognized top-level item (expected one of macro/list/rule/required_engine_version/required_plugin_versions)", ctx))
		return nil
	}
}

func processRequiredEngineVersion(item map[string]any, ctx string, host RulesEngineHost, result *LoadResult) error {
	n, ok := getNumber(item, "required_engine_version")
	if !ok {
		return errors.New(FormatError("rules: required_engine_version must be a number", ctx))
	}
	required := uint64(n)
	if host.EngineVersion() < required {
		return errors.New(FormatError(fmt.Sprintf("rules: required engine version %d is greater than the running engine version %d", required, host.EngineVersion()), ctx))
	}
	if required > result.RequiredEngineVersion {
		result.RequiredEngineVersion = required
	}
	return nil
}

func processRequiredPluginVersions(item map[string]any, ctx string, result *LoadResult) error {
	entries, ok := getMapSlice(item, "required_plugin_versions")
	if !ok {
		return errors.New(FormatError("rules: required_plugin_versions must be an array", ctx))
	}
	for _, entry := range entries {
		name, hasName := getString(entry, "name")
		version, hasVersion := getString(entry, "version")
		if !hasName || !hasVersion {
			return errors.New(FormatError("rules: required_plugin_versions entry requires name and version", ctx))
		}
		result.RequiredPluginVersions[name] = append(result.RequiredPluginVersions[name], version)
	}
	return nil
}

func processMacro(cat *Catalog, item map[string]any, ctx string) error {
	name, _ := getString(item, "macro")
	appendFlag := getBool(item, "append", false)

	if appendFlag {
		existing, ok := cat.MacrosByName[name]
		if !ok {
			return errors.New(FormatError(fmt.Sprintf("rules: macro %q: append to non-existent macro", name), ctx))
		}
		cond, _ := getString(item, "condition")
		existing.Condition = existing.Condition + " " + cond
		existing.Context = existing.Context + "\n" + ctx
		return nil
	}

	cond, hasCond := getString(item, "condition")
	if !hasCond {
		return errors.New(FormatError(fmt.Sprintf("rules: macro %q requires condition", name), ctx))
	}
	source := getStringDefault(item, "source", "syscall")
	if _, exists := cat.MacrosByName[name]; !exists {
		cat.OrderedMacroNames = append(cat.OrderedMacroNames, name)
	}
	cat.MacrosByName[name] = &MacroRecord{
		Name:      name,
		Condition: cond,
		Source:    source,
		Context:   ctx,
	}
	return nil
}

func processList(cat *Catalog, item map[string]any, ctx string) error {
	name, _ := getString(item, "list")
	appendFlag := getBool(item, "append", false)

	if appendFlag {
		existing, ok := cat.ListsByName[name]
		if !ok {
			return errors.New(FormatError(fmt.Sprintf("rules: list %q: append to non-existent list", name), ctx))
		}
		items, ok := getSlice(item, "items")
		if !ok {
			return errors.New(FormatError(fmt.Sprintf("rules: list %q append requires items", name), ctx))
		}
		strs, ok := toStringSlice(items)
		if !ok {
			return errors.New(FormatError(fmt.Sprintf("rules: list %q items must be strings", name), ctx))
		}
		existing.Items = append(existing.Items, strs...)
		existing.Context = existing.Context + "\n" + ctx
		return nil
	}

	rawItems, ok := getSlice(item, "items")
	if !ok {
		return errors.New(FormatError(fmt.Sprintf("rules: list %q requires items", name), ctx))
	}
	strs, ok := toStringSlice(rawItems)
	if !ok {
		return errors.New(FormatError(fmt.Sprintf("rules: list %q items must be strings", name), ctx))
	}
	if _, exists := cat.ListsByName[name]; !exists {
		cat.OrderedListNames = append(cat.OrderedListNames, name)
	}
	cat.ListsByName[name] = &ListRecord{Name: name, Items: strs, Context: ctx}
	return nil
}

var ruleRequiredFields = []string{"condition", "output", "desc", "priority"}

func processRule(cat *Catalog, item map[string]any, ctx string, host RulesEngineHost, opts LoadOptions, result *LoadResult) error {
	name, _ := getString(item, "rule")
	appendFlag := getBool(item, "append", false)

	if appendFlag {
		return processRuleAppend(cat, name, item, ctx, host, result)
	}

	missing := missingRuleFields(item)
	if len(missing) > 0 {
		if hasKey(item, "enabled") && sameSet(missing, ruleRequiredFields) {
			return processEnabledToggle(cat, name, item, ctx)
		}
		return errors.New(FormatError(fmt.Sprintf("rules: rule %q missing required field(s): %s", name, strings.Join(missing, ", ")), ctx))
	}

	source := getStringDefault(item, "source", "syscall")
	exceptions, err := parseExceptionList(item, source, host, ctx)
	if err != nil {
		return err
	}
	condition, _ := getString(item, "condition")
	output, _ := getString(item, "output")
	desc, _ := getString(item, "desc")
	priorityName, _ := getString(item, "priority")
	priorityNum, err := ResolvePriority(priorityName)
	if err != nil {
		return errors.New(FormatError(fmt.Sprintf("rules: rule %q: %v", name, err), ctx))
	}

	rule := &RuleRecord{
		Name:                name,
		Condition:           condition,
		Output:              output,
		Desc:                desc,
		Priority:            priorityName,
		PriorityNum:         priorityNum,
		Source:              source,
		Tags:                parseTags(item),
		Exceptions:          exceptions,
		Enabled:             getBool(item, "enabled", true),
		SkipIfUnknownFilter: getBool(item, "skip-if-unknown-filter", false),
		WarnEvtTypes:        getBool(item, "warn_evttypes", true),
		Context:             ctx,
	}

	if priorityNum <= opts.MinPriority {
		rule.Output = strings.TrimRight(rule.Output, "\n")
		if _, exists := cat.RulesByName[name]; !exists {
			cat.OrderedRuleNames = append(cat.OrderedRuleNames, name)
		}
		cat.RulesByName[name] = rule
		delete(cat.SkippedRulesByName, name)
	} else {
		cat.SkippedRulesByName[name] = rule
		delete(cat.RulesByName, name)
	}
	return nil
}

func missingRuleFields(item map[string]any) []string {
	var missing []string
	for _, f := range ruleRequiredFields {
		if !hasKey(item, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func parseTags(item map[string]any) map[string]struct{} {
	tags := make(map[string]struct{})
	raw, ok := getSlice(item, "tags")
	if !ok {
		return tags
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			tags[s] = struct{}{}
		}
	}
	return tags
}

func processEnabledToggle(cat *Catalog, name string, item map[string]any, ctx string) error {
	enabled := getBool(item, "enabled", true)
	if rule, ok := cat.RulesByName[name]; ok {
		rule.Enabled = enabled
		return nil
	}
	if rule, ok := cat.SkippedRulesByName[name]; ok {
		rule.Enabled = enabled
		return nil
	}
	return errors.New(FormatError(fmt.Sprintf("rules: rule %q: enabled toggle targets a rule that does not exist", name), ctx))
}

func processRuleAppend(cat *Catalog, name string, item map[string]any, ctx string, host RulesEngineHost, result *LoadResult) error {
	rule, ok := cat.RulesByName[name]
	if !ok {
		if _, skipped := cat.SkippedRulesByName[name]; skipped {
			return nil
		}
		return errors.New(FormatError(fmt.Sprintf("rules: rule %q: append to non-existent rule", name), ctx))
	}

	condition, hasCond := getString(item, "condition")
	rawExceptions, hasExceptions := getMapSlice(item, "exceptions")
	if !hasCond && !hasExceptions {
		return errors.New(FormatError(fmt.Sprintf("rules: rule %q append must contribute a condition or exceptions", name), ctx))
	}

	for _, raw := range rawExceptions {
		if err := appendException(rule, raw, host, ctx, result); err != nil {
			return err
		}
	}
	if hasCond {
		rule.Condition = rule.Condition + " " + condition
	}
	rule.Context = rule.Context + "\n" + ctx
	return nil
}

func appendException(rule *RuleRecord, raw map[string]any, host RulesEngineHost, ctx string, result *LoadResult) error {
	name, _ := getString(raw, "name")
	var existing *ExceptionItem
	for i := range rule.Exceptions {
		if rule.Exceptions[i].Name == name {
			existing = &rule.Exceptions[i]
			break
		}
	}
	if existing == nil {
		if !hasKey(raw, "fields") {
			result.Warnings = append(result.Warnings, FormatError(fmt.Sprintf("rules: rule %q: append values to non-existent exception %q", rule.Name, name), ctx))
			return nil
		}
		item, err := parseException(raw, rule.Source, host, ctx)
		if err != nil {
			return err
		}
		rule.Exceptions = append(rule.Exceptions, item)
		return nil
	}
	if hasKey(raw, "fields") || hasKey(raw, "comps") {
		return errors.New(FormatError(fmt.Sprintf("rules: rule %q: exception %q append cannot alter fields or comps", rule.Name, name), ctx))
	}
	appended, err := parseExceptionValues(raw, *existing, ctx)
	if err != nil {
		return err
	}
	if existing.Single {
		existing.SingleValues = append(existing.SingleValues, appended.SingleValues...)
	} else {
		existing.MultiValues = append(existing.MultiValues, appended.MultiValues...)
	}
	return nil
}

func parseExceptionList(item map[string]any, source string, host RulesEngineHost, ctx string) ([]ExceptionItem, error) {
	raw, ok := getMapSlice(item, "exceptions")
	if !ok {
		return nil, nil
	}
	out := make([]ExceptionItem, 0, len(raw))
	for _, e := range raw {
		parsed, err := parseException(e, source, host, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseException(raw map[string]any, source string, host RulesEngineHost, ctx string) (ExceptionItem, error) {
	name, hasName := getString(raw, "name")
	if !hasName {
		return ExceptionItem{}, errors.New(FormatError("rules: exception requires name", ctx))
	}
	if !hasKey(raw, "fields") {
		return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q requires fields", name), ctx))
	}

	item := ExceptionItem{Name: name}
	switch fv := raw["fields"].(type) {
	case string:
		item.Single = true
		item.Fields = []string{fv}
		comp := "in"
		if c, ok := getString(raw, "comps"); ok {
			comp = c
		} else if hasKey(raw, "comps") {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: comps must be a scalar when fields is a scalar", name), ctx))
		}
		if !host.IsDefinedField(source, fv) {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: undefined field %q for source %q", name, fv, source), ctx))
		}
		if !IsDefinedOperator(comp) {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: undefined comparison operator %q", name, comp), ctx))
		}
		item.Comps = []string{comp}
	case []any:
		fields, ok := toStringSlice(fv)
		if !ok {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: fields must be strings", name), ctx))
		}
		item.Fields = fields
		for _, f := range fields {
			if !host.IsDefinedField(source, f) {
				return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: undefined field %q for source %q", name, f, source), ctx))
			}
		}
		comps := make([]string, len(fields))
		for i := range comps {
			comps[i] = "="
		}
		if rawComps, ok := getSlice(raw, "comps"); ok {
			parsed, ok := toStringSlice(rawComps)
			if !ok || len(parsed) != len(fields) {
				return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: comps must match fields length", name), ctx))
			}
			comps = parsed
		}
		for _, c := range comps {
			if !IsDefinedOperator(c) {
				return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: undefined comparison operator %q", name, c), ctx))
			}
		}
		item.Comps = comps
	default:
		return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: fields must be a string or array of strings", name), ctx))
	}

	values, err := parseExceptionValues(raw, item, ctx)
	if err != nil {
		return ExceptionItem{}, err
	}
	item.SingleValues = values.SingleValues
	item.MultiValues = values.MultiValues
	return item, nil
}

// parseExceptionValues parses the raw "values" entry into the shape implied
// by shape.Single / len(shape.Fields). It is also used to parse the
// *additional* values supplied by an append-exception item, using the
// already-established shape of the existing exception.
func parseExceptionValues(raw map[string]any, shape ExceptionItem, ctx string) (ExceptionItem, error) {
	out := ExceptionItem{Single: shape.Single}
	rawValues, ok := getSlice(raw, "values")
	if !ok {
		return out, nil
	}
	if shape.Single {
		strs, ok := toStringSlice(rawValues)
		if !ok {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: single-field values must be strings", shape.Name), ctx))
		}
		out.SingleValues = strs
		return out, nil
	}
	n := len(shape.Fields)
	tuples := make([][]ExceptionCell, 0, len(rawValues))
	for _, rawTuple := range rawValues {
		tupleSlice, ok := rawTuple.([]any)
		if !ok {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: multi-field values must be tuples", shape.Name), ctx))
		}
		if len(tupleSlice) != n {
			return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: value tuple length %d does not match %d fields", shape.Name, len(tupleSlice), n), ctx))
		}
		cells := make([]ExceptionCell, n)
		for i, v := range tupleSlice {
			switch cv := v.(type) {
			case string:
				cells[i] = ExceptionCell{Scalar: cv}
			case []any:
				list, ok := toStringSlice(cv)
				if !ok {
					return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: nested list values must be strings", shape.Name), ctx))
				}
				cells[i] = ExceptionCell{List: list}
			default:
				return ExceptionItem{}, errors.New(FormatError(fmt.Sprintf("rules: exception %q: value must be a string or list of strings", shape.Name), ctx))
			}
		}
		tuples = append(tuples, cells)
	}
	out.MultiValues = tuples
	return out, nil
}

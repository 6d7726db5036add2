package rules

import (
	"fmt"
	"strings"
)

// fakeHost is a minimal, in-memory RulesEngineHost for exercising the
// loader and compiler without any real filter engine behind it.
type fakeHost struct {
	version        uint64
	definedFields  map[string]map[string]bool
	validSources   map[string]bool
	invalidFormats map[string]bool
	unknownFields  map[string]bool

	enabled     map[string]bool
	added       []addedFilter
	numEvtTypes int
}

type addedFilter struct {
	ruleName string
	source   string
	tags     []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		version:        1,
		definedFields:  map[string]map[string]bool{},
		validSources:   map[string]bool{"syscall": true},
		invalidFormats: map[string]bool{},
		unknownFields:  map[string]bool{},
		enabled:        map[string]bool{},
		numEvtTypes:    1,
	}
}

func (h *fakeHost) EngineVersion() uint64 { return h.version }

func (h *fakeHost) IsDefinedField(source, name string) bool {
	fields, ok := h.definedFields[source]
	if !ok {
		return true
	}
	return fields[name]
}

func (h *fakeHost) IsSourceValid(source string) bool { return h.validSources[source] }

func (h *fakeHost) IsFormatValid(source, template string) error {
	if h.invalidFormats[template] {
		return fmt.Errorf("fake: invalid output format %q", template)
	}
	return nil
}

func (h *fakeHost) ClearFilters() {
	h.added = nil
}

func (h *fakeHost) CreateParser(source string) (ParserBuilder, error) {
	return &fakeParser{unknownFields: h.unknownFields}, nil
}

func (h *fakeHost) AddFilter(parser ParserBuilder, ruleName, source string, tags []string) (int, error) {
	h.added = append(h.added, addedFilter{ruleName: ruleName, source: source, tags: tags})
	return h.numEvtTypes, nil
}

func (h *fakeHost) EnableRule(ruleName string, enabled bool) {
	h.enabled[ruleName] = enabled
}

// fakeParser records the Nest/Unnest/BoolOp/RelExpr call stream so tests can
// assert on the shape the filter builder walk emits.
type fakeParser struct {
	calls         []string
	unknownFields map[string]bool
}

func (p *fakeParser) Nest() error {
	p.calls = append(p.calls, "nest")
	return nil
}

func (p *fakeParser) Unnest() error {
	p.calls = append(p.calls, "unnest")
	return nil
}

func (p *fakeParser) BoolOp(op BoolOperator) error {
	p.calls = append(p.calls, "bool:"+string(op))
	return nil
}

func (p *fakeParser) RelExpr(field string, op Operator, value RelValue, index int) error {
	if p.unknownFields[field] {
		return fmt.Errorf("fake: nonexistent field %q", field)
	}
	p.calls = append(p.calls, fmt.Sprintf("rel:%s:%s:%d", field, op, index))
	return nil
}

// fakeCompiler is a trivial FilterCompiler: it parses "a and b", "a or b"
// and "not a" shaped conditions, plus bare "field op value" relational
// terms, enough to exercise macro/rule compilation without a real CEL (or
// any other) filter-expression engine.
type fakeCompiler struct {
	failConditions map[string]bool
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{failConditions: map[string]bool{}}
}

func (c *fakeCompiler) CompileMacro(condition string, macros CompiledMacros, lists CompiledLists) (Node, error) {
	root, err := c.CompileFilter("", condition, macros, lists)
	if err != nil {
		return nil, err
	}
	return root.AST, nil
}

func (c *fakeCompiler) CompileFilter(ruleName, condition string, macros CompiledMacros, lists CompiledLists) (Root, error) {
	if c.failConditions[condition] {
		return Root{}, fmt.Errorf("fake: cannot compile %q", condition)
	}
	node, err := parseFakeCondition(condition, macros)
	if err != nil {
		return Root{}, err
	}
	return Root{AST: node, IsRule: true}, nil
}

func (c *fakeCompiler) Trim(text string) string {
	for len(text) > 0 && text[len(text)-1] == '\n' {
		text = text[:len(text)-1]
	}
	return text
}

// parseFakeCondition implements just enough grammar to drive compile.go's
// tests: bare macro-name substitution, "<field> <op> <value>" relational
// terms, and top-level "and"/"or" joins of two such terms or macro names.
func parseFakeCondition(condition string, macros CompiledMacros) (Node, error) {
	condition = strings.TrimSpace(condition)
	if node, ok := macros[condition]; ok {
		return node, nil
	}
	if idx := strings.Index(condition, " and "); idx != -1 {
		left, err := parseFakeCondition(condition[:idx], macros)
		if err != nil {
			return nil, err
		}
		right, err := parseFakeCondition(condition[idx+len(" and "):], macros)
		if err != nil {
			return nil, err
		}
		return &BinaryBoolOp{Op: BoolAnd, Left: left, Right: right}, nil
	}
	if idx := strings.Index(condition, " or "); idx != -1 {
		left, err := parseFakeCondition(condition[:idx], macros)
		if err != nil {
			return nil, err
		}
		right, err := parseFakeCondition(condition[idx+len(" or "):], macros)
		if err != nil {
			return nil, err
		}
		return &BinaryBoolOp{Op: BoolOr, Left: left, Right: right}, nil
	}
	fields := splitWords(condition)
	if len(fields) == 3 {
		return &BinaryRelOp{Field: fields[0], Op: Operator(fields[1]), Value: RelValue{Scalar: fields[2]}}, nil
	}
	return nil, fmt.Errorf("fake: cannot parse condition %q", condition)
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			words = append(words, s[start:i])
			start = -1
		}
	}
	return words
}

package celfilter

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/ruleforge/rulecore/internal/expr"
	"github.com/ruleforge/rulecore/internal/rules"
)

// registeredFilter is what AddFilter retains for a compiled, host-registered
// rule: its source, its tag set and the event types its filter resolved to.
type registeredFilter struct {
	Source   string
	Tags     []string
	EvtTypes []string
	Enabled  bool
}

// Host is the reference RulesEngineHost: field definedness is decided by
// compiling the bare field name against a per-source CEL environment (the
// same undeclared-reference mechanism internal/expr.Environment exists for),
// rather than a plain map lookup, so an unknown field fails for the same
// reason an unknown field in a general CEL expression would.
type Host struct {
	mu      sync.Mutex
	envs    map[string]*expr.Environment
	filters map[string]*registeredFilter
}

// NewHost builds a Host with one CEL field-validation environment per known
// event source.
func NewHost() (*Host, error) {
	envs := make(map[string]*expr.Environment, len(fieldsBySource))
	for source, fields := range fieldsBySource {
		env, err := expr.NewEnvironment(fields)
		if err != nil {
			return nil, fmt.Errorf("celfilter: build field environment for %q: %w", source, err)
		}
		envs[source] = env
	}
	return &Host{envs: envs, filters: make(map[string]*registeredFilter)}, nil
}

// EngineVersion reports this reference host's fixed version number.
func (h *Host) EngineVersion() uint64 { return engineVersion }

// IsDefinedField reports whether name is declared for source, by compiling
// it as a standalone CEL expression against that source's environment: an
// undeclared field fails to compile with an undeclared-reference error.
func (h *Host) IsDefinedField(source, name string) bool {
	env, ok := h.envs[source]
	if !ok {
		return false
	}
	_, err := env.Compile(name)
	return err == nil
}

// IsSourceValid reports whether source is one this host recognizes.
func (h *Host) IsSourceValid(source string) bool {
	_, ok := h.envs[source]
	return ok
}

var fieldTokenPattern = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_.]*)`)

// IsFormatValid checks that every "%field" placeholder in template names a
// field defined for source.
func (h *Host) IsFormatValid(source, template string) error {
	if !h.IsSourceValid(source) {
		return fmt.Errorf("celfilter: unknown source %q", source)
	}
	for _, m := range fieldTokenPattern.FindAllStringSubmatch(template, -1) {
		field := m[1]
		if !h.IsDefinedField(source, field) {
			return fmt.Errorf("celfilter: output references undefined field %q", field)
		}
	}
	return nil
}

// ClearFilters discards every previously registered filter, ahead of a
// fresh compile pass.
func (h *Host) ClearFilters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters = make(map[string]*registeredFilter)
}

// CreateParser returns a fresh Builder for source.
func (h *Host) CreateParser(source string) (rules.ParserBuilder, error) {
	if !h.IsSourceValid(source) {
		return nil, fmt.Errorf("celfilter: unknown source %q", source)
	}
	return &Builder{source: source, host: h, evtTypes: make(map[string]struct{})}, nil
}

// AddFilter registers parser's accumulated evt.type set under ruleName and
// returns how many distinct event types it resolved.
func (h *Host) AddFilter(parser rules.ParserBuilder, ruleName, source string, tags []string) (int, error) {
	b, ok := parser.(*Builder)
	if !ok {
		return 0, fmt.Errorf("celfilter: parser %T was not created by this host", parser)
	}
	evtTypes := make([]string, 0, len(b.evtTypes))
	for t := range b.evtTypes {
		evtTypes = append(evtTypes, t)
	}
	sort.Strings(evtTypes)

	h.mu.Lock()
	h.filters[ruleName] = &registeredFilter{Source: source, Tags: tags, EvtTypes: evtTypes, Enabled: true}
	h.mu.Unlock()
	return len(evtTypes), nil
}

// EnableRule flips a previously registered filter's enabled flag.
func (h *Host) EnableRule(ruleName string, enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.filters[ruleName]; ok {
		f.Enabled = enabled
	}
}

// FilterCount returns the number of rules currently registered with the
// host, for metrics and diagnostics.
func (h *Host) FilterCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.filters)
}

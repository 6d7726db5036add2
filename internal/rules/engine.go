package rules

import "io"

// Engine owns one Catalog for its lifetime: every LoadRules call starts
// Pass 1 from a fresh Catalog (deterministic catalog reset across loads),
// while a single LoadRules invocation may itself perform additive,
// multi-document composition by decoding several YAML documents from one
// content string.
type Engine struct {
	host     RulesEngineHost
	compiler FilterCompiler
	catalog  *Catalog
	stats    *Stats
}

// NewEngine binds an Engine to its host and filter compiler for its entire
// lifetime: the Load API takes no compiler argument, so the binding happens
// once here instead of per call.
func NewEngine(host RulesEngineHost, compiler FilterCompiler) *Engine {
	return &Engine{
		host:     host,
		compiler: compiler,
		catalog:  NewCatalog(),
		stats:    NewStats(),
	}
}

// EngineLoadResult is the combined, user-facing outcome of a LoadRules call.
type EngineLoadResult struct {
	RequiredEngineVersion  uint64
	RequiredPluginVersions map[string][]string
	Warnings               []string
	NumRulesLoaded         int
	NumRulesSkipped        int
}

// LoadRules replaces the engine's catalog with a freshly loaded one: Pass 1
// parses content into macro/list/rule records (composing additively within
// this single call), then Pass 2b compiles every active rule's filter and
// registers it with the host.
func (e *Engine) LoadRules(content string, opts LoadOptions) (EngineLoadResult, error) {
	cat := NewCatalog()

	pass1, err := loadPass1(content, e.host, opts, cat)
	if err != nil {
		return EngineLoadResult{}, err
	}

	pass2, err := Compile(cat, e.host, e.compiler, opts)
	if err != nil {
		return EngineLoadResult{}, err
	}

	e.catalog = cat
	e.stats = NewStats()

	return EngineLoadResult{
		RequiredEngineVersion:  pass1.RequiredEngineVersion,
		RequiredPluginVersions: pass1.RequiredPluginVersions,
		Warnings:               append(pass1.Warnings, pass2.Warnings...),
		NumRulesLoaded:         cat.NRules,
		NumRulesSkipped:        len(cat.SkippedRulesByName),
	}, nil
}

// OnEvent dispatches ruleID against the engine's current catalog and stats.
func (e *Engine) OnEvent(ruleID int) (DispatchResult, error) {
	return OnEvent(e.catalog, e.stats, ruleID)
}

// DescribeRule writes a description of name (or every loaded rule if nil)
// using the engine's current catalog.
func (e *Engine) DescribeRule(w io.Writer, name *string) error {
	return DescribeRule(w, e.catalog, name)
}

// PrintStats writes a snapshot of the engine's dispatch counters.
func (e *Engine) PrintStats(w io.Writer) {
	PrintStats(w, e.stats)
}

// Catalog exposes the engine's current catalog for read-only inspection
// (e.g. by a CLI's describe/stats commands).
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Stats exposes the engine's current dispatch counters.
func (e *Engine) Stats() *Stats { return e.stats }

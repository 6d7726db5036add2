package rules

// ListRecord is a named, ordered sequence of literal strings. Lists may
// refer to other lists by name (resolved during Pass 2a expansion).
type ListRecord struct {
	Name    string
	Items   []string
	Append  bool
	Context string
	Used    bool
}

// MacroRecord is a named filter sub-expression that rules and other macros
// may reference by name.
type MacroRecord struct {
	Name      string
	Condition string
	Source    string
	Append    bool
	Context   string
	Used      bool
	AST       Node
}

// ExceptionCell is one slot of a multi-field exception value tuple: either a
// plain scalar or, when the corresponding comparator is a list operator, a
// nested list of scalars.
type ExceptionCell struct {
	Scalar string
	List   []string
}

// IsList reports whether this cell carries a nested list value.
func (c ExceptionCell) IsList() bool { return c.List != nil }

// ExceptionItem is a declarative exception record belonging to a rule. For
// a single-field exception (Single == true), SingleValues holds one scalar
// per value; for a multi-field exception, MultiValues holds one tuple
// (length len(Fields)) per value group.
type ExceptionItem struct {
	Name         string
	Fields       []string
	Comps        []string
	Single       bool
	SingleValues []string
	MultiValues  [][]ExceptionCell
}

// RuleRecord is a named filter expression with a priority, output template
// and optional exceptions.
type RuleRecord struct {
	Name                string
	Condition           string
	Output              string
	Desc                string
	Priority            string
	PriorityNum         int
	Source              string
	Tags                map[string]struct{}
	Exceptions          []ExceptionItem
	Enabled             bool
	SkipIfUnknownFilter bool
	WarnEvtTypes        bool
	Append              bool
	Context             string

	// Derived at compile time (Pass 2b).
	CompileCondition string
	ExceptionFields  map[string]struct{}
	indexAssigned    int
}

// SortedTags returns the rule's tags as a slice, in arbitrary but stable
// (sorted) order, for deterministic output.
func (r *RuleRecord) SortedTags() []string {
	out := make([]string, 0, len(r.Tags))
	for t := range r.Tags {
		out = append(out, t)
	}
	sortStrings(out)
	return out
}

// Catalog is the process-wide state for the duration of a load: macros,
// lists and rules by name, ordered first-appearance name sequences, and the
// dense rule-index table populated during Pass 2b.
//
// Invariants:
//
//   - every name in RulesByName appears exactly once in OrderedRuleNames
//   - a rule name is in RulesByName xor SkippedRulesByName, never both
//   - every integer in [1, NRules] maps in RulesByIdx to a rule present
//     in RulesByName
//   - unresolved list-item references are treated as literals
//   - append without a prior definition is an error, except for rules
//     filtered out by priority threshold
type Catalog struct {
	MacrosByName       map[string]*MacroRecord
	ListsByName        map[string]*ListRecord
	RulesByName        map[string]*RuleRecord
	SkippedRulesByName map[string]*RuleRecord

	OrderedMacroNames []string
	OrderedListNames  []string
	OrderedRuleNames  []string

	// RulesByIdx is 1-based; index 0 is always nil.
	RulesByIdx []*RuleRecord
	NRules     int

	CompiledLists CompiledLists

	// warnEvtTypesZero accumulates rule names whose compiled syscall filter
	// matched zero or more than 100 event types and which did not set
	// warn_evttypes: false.
	warnEvtTypesZero []string
}

// NewCatalog returns an empty Catalog ready for a fresh load.
func NewCatalog() *Catalog {
	return &Catalog{
		MacrosByName:       make(map[string]*MacroRecord),
		ListsByName:        make(map[string]*ListRecord),
		RulesByName:        make(map[string]*RuleRecord),
		SkippedRulesByName: make(map[string]*RuleRecord),
		RulesByIdx:         []*RuleRecord{nil},
	}
}

// ResetForRecompile clears host-side filter storage state owned by the
// Catalog (the dense index table and the compiled-lists cache) ahead of
// Pass 2b, while preserving the by-name tables Pass 1 populated. Callers
// must separately invoke RulesEngineHost.ClearFilters.
func (c *Catalog) ResetForRecompile() {
	c.RulesByIdx = []*RuleRecord{nil}
	c.NRules = 0
	c.CompiledLists = nil
	c.warnEvtTypesZero = nil
	for _, m := range c.MacrosByName {
		m.Used = false
		m.AST = nil
	}
	for _, l := range c.ListsByName {
		l.Used = false
	}
}

func sortStrings(s []string) {
	// insertion sort: these slices are small (tag sets per rule).
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

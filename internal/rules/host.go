package rules

// Operator is a filter comparison operator, as used on the right-hand side
// of a relational node.
type Operator string

// Defined comparison operators. Operators accepting list right-hand sides
// are OpIn, OpIntersects and OpPmatch.
const (
	OpEq         Operator = "="
	OpEqEq       Operator = "=="
	OpNe         Operator = "!="
	OpLe         Operator = "<="
	OpGe         Operator = ">="
	OpLt         Operator = "<"
	OpGt         Operator = ">"
	OpContains   Operator = "contains"
	OpIContains  Operator = "icontains"
	OpGlob       Operator = "glob"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpIn         Operator = "in"
	OpIntersects Operator = "intersects"
	OpPmatch     Operator = "pmatch"
)

var definedOperators = map[Operator]struct{}{
	OpEq: {}, OpEqEq: {}, OpNe: {}, OpLe: {}, OpGe: {}, OpLt: {}, OpGt: {},
	OpContains: {}, OpIContains: {}, OpGlob: {}, OpStartsWith: {}, OpEndsWith: {},
	OpIn: {}, OpIntersects: {}, OpPmatch: {},
}

var listOperators = map[Operator]struct{}{
	OpIn: {}, OpIntersects: {}, OpPmatch: {},
}

// IsDefinedOperator reports whether op names one of the recognized
// comparison operators.
func IsDefinedOperator(op string) bool {
	_, ok := definedOperators[Operator(op)]
	return ok
}

// IsListOperator reports whether op expects a list right-hand side.
func IsListOperator(op string) bool {
	_, ok := listOperators[Operator(op)]
	return ok
}

// BoolOperator is a boolean connective: "and", "or" or "not".
type BoolOperator string

const (
	BoolAnd BoolOperator = "and"
	BoolOr  BoolOperator = "or"
	BoolNot BoolOperator = "not"
)

// Node is the sealed sum type over the AST variants the filter compiler may
// hand back: BinaryBoolOp, UnaryBoolOp, BinaryRelOp, UnaryRelOp. Any other
// concrete type reaching the relational-indexing walk or the filter builder
// walk is an invariant violation.
type Node interface {
	node()
}

// BinaryBoolOp is a two-operand boolean connective (and/or).
type BinaryBoolOp struct {
	Op          BoolOperator
	Left, Right Node
}

func (*BinaryBoolOp) node() {}

// UnaryBoolOp is a one-operand boolean connective (not).
type UnaryBoolOp struct {
	Op  BoolOperator
	Arg Node
}

func (*UnaryBoolOp) node() {}

// RelValue is the right-hand side of a relational node: either a single
// scalar or, for list operators, an ordered list of scalars.
type RelValue struct {
	Scalar string
	List   []string
}

// IsList reports whether this value carries a list right-hand side.
func (v RelValue) IsList() bool { return v.List != nil }

// BinaryRelOp compares a field against a value. Index is assigned by the
// relational-node stamping pass during Pass 2b and is zero beforehand.
type BinaryRelOp struct {
	Field string
	Op    Operator
	Value RelValue
	Index int
}

func (*BinaryRelOp) node() {}

// UnaryRelOp tests a single field (e.g. "fd.ip exists") with no right-hand
// value. Index is assigned the same way as BinaryRelOp.
type UnaryRelOp struct {
	Field string
	Op    Operator
	Index int
}

func (*UnaryRelOp) node() {}

// CompiledMacros maps a macro name to its already-compiled AST, for
// compilers that resolve macro references by substitution.
type CompiledMacros map[string]Node

// CompiledLists maps a list name to its expanded (Pass 2a) item strings.
type CompiledLists map[string][]string

// Root is the result of compiling a rule or macro condition. IsRule
// distinguishes a rule-typed result (ready for event dispatch) from a
// macro-typed result (only valid for substitution into other conditions).
type Root struct {
	AST    Node
	IsRule bool
}

// FilterCompiler is the external filter-expression compiler. It is
// out-of-scope for this package: the core only calls through this interface.
type FilterCompiler interface {
	// CompileMacro compiles a macro condition, resolving references to
	// already-compiled macros and expanded lists.
	CompileMacro(condition string, macros CompiledMacros, lists CompiledLists) (Node, error)
	// CompileFilter compiles a rule condition. ruleName is supplied purely
	// for compiler-side diagnostics.
	CompileFilter(ruleName, condition string, macros CompiledMacros, lists CompiledLists) (Root, error)
	// Trim strips trailing newlines from free-form text (e.g. output
	// templates) the way the filter compiler's own lexer would.
	Trim(text string) string
}

// ParserBuilder receives the filter-builder call stream emitted while
// walking a compiled rule AST.
type ParserBuilder interface {
	Nest() error
	Unnest() error
	BoolOp(op BoolOperator) error
	RelExpr(field string, op Operator, value RelValue, index int) error
}

// RulesEngineHost is the external rules engine host: it owns filter
// storage, event-type mapping, field-validity checks and output-formatter
// validation, and event dispatch.
type RulesEngineHost interface {
	EngineVersion() uint64
	IsDefinedField(source, name string) bool
	IsSourceValid(source string) bool
	// IsFormatValid returns a non-nil error describing why template is
	// invalid for source, or nil if it is valid.
	IsFormatValid(source, template string) error
	ClearFilters()
	// CreateParser returns a fresh ParserBuilder for the given source.
	CreateParser(source string) (ParserBuilder, error)
	// AddFilter registers parser's accumulated filter under ruleName/source
	// with the given tags, returning how many event types it matches.
	AddFilter(parser ParserBuilder, ruleName, source string, tags []string) (numEvtTypes int, err error)
	EnableRule(ruleName string, enabled bool)
}

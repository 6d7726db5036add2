package celfilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruleforge/rulecore/internal/rules"
)

func TestCompileMacroSimpleRelExpr(t *testing.T) {
	c := NewCompiler()
	node, err := c.CompileMacro(`proc.name = apk`, nil, nil)
	require.NoError(t, err)

	rel, ok := node.(*rules.BinaryRelOp)
	require.True(t, ok, "expected a BinaryRelOp, got %T", node)
	require.Equal(t, "proc.name", rel.Field)
	require.Equal(t, rules.OpEq, rel.Op)
	require.Equal(t, "apk", rel.Value.Scalar)
	require.False(t, rel.Value.IsList())
}

func TestCompileMacroAndOrPrecedence(t *testing.T) {
	c := NewCompiler()
	// "or" binds looser than "and": a and b or c == (a and b) or c
	node, err := c.CompileMacro(`proc.name = a and fd.name = b or proc.name = c`, nil, nil)
	require.NoError(t, err)

	top, ok := node.(*rules.BinaryBoolOp)
	require.True(t, ok, "expected top-level BinaryBoolOp, got %T", node)
	require.Equal(t, rules.BoolOr, top.Op)

	left, ok := top.Left.(*rules.BinaryBoolOp)
	require.True(t, ok, "expected left side to be the and-clause, got %T", top.Left)
	require.Equal(t, rules.BoolAnd, left.Op)
}

func TestCompileMacroNotAndParens(t *testing.T) {
	c := NewCompiler()
	node, err := c.CompileMacro(`not (proc.name = a or proc.name = b)`, nil, nil)
	require.NoError(t, err)

	un, ok := node.(*rules.UnaryBoolOp)
	require.True(t, ok, "expected UnaryBoolOp, got %T", node)
	require.Equal(t, rules.BoolNot, un.Op)

	_, ok = un.Arg.(*rules.BinaryBoolOp)
	require.True(t, ok, "expected the parenthesized clause to be a BinaryBoolOp, got %T", un.Arg)
}

func TestCompileMacroExists(t *testing.T) {
	c := NewCompiler()
	node, err := c.CompileMacro(`fd.ip exists`, nil, nil)
	require.NoError(t, err)

	un, ok := node.(*rules.UnaryRelOp)
	require.True(t, ok, "expected UnaryRelOp, got %T", node)
	require.Equal(t, "fd.ip", un.Field)
	require.Equal(t, OpExists, un.Op)
}

func TestCompileMacroListLiteralForListOperator(t *testing.T) {
	c := NewCompiler()
	node, err := c.CompileMacro(`fd.name in (/etc/passwd, /etc/shadow)`, nil, nil)
	require.NoError(t, err)

	rel, ok := node.(*rules.BinaryRelOp)
	require.True(t, ok, "expected BinaryRelOp, got %T", node)
	require.Equal(t, rules.OpIn, rel.Op)
	require.Equal(t, []string{"/etc/passwd", "/etc/shadow"}, rel.Value.List)
}

func TestCompileMacroExpandsListReference(t *testing.T) {
	c := NewCompiler()
	lists := rules.CompiledLists{"known_binaries": {"apk", "apt"}}
	node, err := c.CompileMacro(`proc.name in known_binaries`, nil, lists)
	require.NoError(t, err)

	rel, ok := node.(*rules.BinaryRelOp)
	require.True(t, ok, "expected BinaryRelOp, got %T", node)
	require.Equal(t, []string{"apk", "apt"}, rel.Value.List)
}

func TestCompileMacroSubstitutesMacroReference(t *testing.T) {
	c := NewCompiler()
	inner := &rules.BinaryRelOp{Field: "proc.name", Op: rules.OpEq, Value: rules.RelValue{Scalar: "apk"}}
	macros := rules.CompiledMacros{"is_apk": inner}

	node, err := c.CompileMacro(`is_apk and fd.name exists`, macros, nil)
	require.NoError(t, err)

	top, ok := node.(*rules.BinaryBoolOp)
	require.True(t, ok, "expected BinaryBoolOp, got %T", node)
	require.Same(t, inner, top.Left)
}

func TestCompileMacroUndefinedBareWordIsAnError(t *testing.T) {
	c := NewCompiler()
	_, err := c.CompileMacro(`not_a_macro_or_field`, nil, nil)
	require.Error(t, err)
}

func TestCompileMacroRejectsTrailingTokens(t *testing.T) {
	c := NewCompiler()
	_, err := c.CompileMacro(`proc.name = apk )`, nil, nil)
	require.Error(t, err)
}

func TestCompileFilterReturnsRuleTypedRoot(t *testing.T) {
	c := NewCompiler()
	root, err := c.CompileFilter("my_rule", `proc.name = apk`, nil, nil)
	require.NoError(t, err)
	require.True(t, root.IsRule)
	require.NotNil(t, root.AST)
}

func TestTrimStripsTrailingNewlines(t *testing.T) {
	c := NewCompiler()
	require.Equal(t, "hello", c.Trim("hello\n\n"))
}

// Package celfilter is a reference FilterCompiler and RulesEngineHost pair:
// it parses the filter-condition grammar into the rules package's Node sum
// type, and backs the per-source field registry, filter storage and
// event-type accounting a RulesEngineHost owns.
package celfilter

import (
	"fmt"
	"strings"

	"github.com/ruleforge/rulecore/internal/rules"
)

// OpExists is the pseudo-operator used for a unary "<field> exists" clause.
// It is not a member of rules' comparison-operator set (exceptions never
// accept it as a comparator) but Operator is only a string, so a condition
// parser is free to mint its own.
const OpExists rules.Operator = "exists"

// Compiler is the reference FilterCompiler: a recursive-descent parser over
// the and/or/not infix grammar, substituting macro and list references as
// it goes.
type Compiler struct{}

// NewCompiler returns a ready-to-use Compiler. It holds no state between calls.
func NewCompiler() *Compiler { return &Compiler{} }

// CompileMacro parses condition and returns its AST, substituting any
// already-compiled macro references it contains.
func (c *Compiler) CompileMacro(condition string, macros rules.CompiledMacros, lists rules.CompiledLists) (rules.Node, error) {
	p, err := newParser(condition, macros, lists)
	if err != nil {
		return nil, err
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return node, nil
}

// CompileFilter parses condition into a rule-typed Root.
func (c *Compiler) CompileFilter(ruleName, condition string, macros rules.CompiledMacros, lists rules.CompiledLists) (rules.Root, error) {
	node, err := c.CompileMacro(condition, macros, lists)
	if err != nil {
		return rules.Root{}, err
	}
	return rules.Root{AST: node, IsRule: true}, nil
}

// Trim strips the trailing newlines a YAML block scalar tends to leave on
// free-form text, the same way a hand-rolled lexer would discard them
// before handing a token back to its caller.
func (c *Compiler) Trim(text string) string {
	return strings.TrimRight(text, "\n\r")
}

type parser struct {
	tokens []token
	pos    int
	macros rules.CompiledMacros
	lists  rules.CompiledLists
}

func newParser(condition string, macros rules.CompiledMacros, lists rules.CompiledLists) (*parser, error) {
	tokens, err := lex(condition)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens, macros: macros, lists: lists}, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expectEOF() error {
	if p.peek().kind != tokEOF {
		return fmt.Errorf("celfilter: unexpected trailing token %q", p.peek().text)
	}
	return nil
}

// parseExpr handles the lowest-precedence connective, "or".
func (p *parser) parseExpr() (rules.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for isWord(p.peek(), "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &rules.BinaryBoolOp{Op: rules.BoolOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (rules.Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for isWord(p.peek(), "and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &rules.BinaryBoolOp{Op: rules.BoolAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (rules.Node, error) {
	if isWord(p.peek(), "not") {
		p.next()
		arg, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &rules.UnaryBoolOp{Op: rules.BoolNot, Arg: arg}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (rules.Node, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("celfilter: expected ')' at position %d, got %q", p.peek().pos, p.peek().text)
		}
		p.next()
		return inner, nil
	case tok.kind == tokWord:
		return p.parseFieldOrMacro()
	default:
		return nil, fmt.Errorf("celfilter: unexpected token %q at position %d", tok.text, tok.pos)
	}
}

// parseFieldOrMacro consumes a leading identifier and decides, from the
// token that follows, whether it names a field (an operator or "exists"
// comes next) or a macro reference (anything else).
func (p *parser) parseFieldOrMacro() (rules.Node, error) {
	name := p.next()

	next := p.peek()
	if next.kind == tokOp {
		op := p.next()
		if !rules.IsDefinedOperator(op.text) {
			return nil, fmt.Errorf("celfilter: unknown comparison operator %q at position %d", op.text, op.pos)
		}
		value, err := p.parseValue(rules.IsListOperator(op.text))
		if err != nil {
			return nil, err
		}
		return &rules.BinaryRelOp{Field: name.text, Op: rules.Operator(op.text), Value: value}, nil
	}
	if next.kind == tokWord && rules.IsDefinedOperator(next.text) {
		op := p.next()
		value, err := p.parseValue(rules.IsListOperator(op.text))
		if err != nil {
			return nil, err
		}
		return &rules.BinaryRelOp{Field: name.text, Op: rules.Operator(op.text), Value: value}, nil
	}
	if next.kind == tokWord && next.text == "exists" {
		p.next()
		return &rules.UnaryRelOp{Field: name.text, Op: OpExists}, nil
	}

	if ast, ok := p.macros[name.text]; ok {
		return ast, nil
	}
	return nil, fmt.Errorf("celfilter: %q is neither a known comparison nor a defined macro", name.text)
}

// parseValue consumes a single value or a parenthesized, comma-separated
// list. A bare identifier matching a compiled list name is spliced in as
// that list's expanded items, wherever it appears.
func (p *parser) parseValue(wantList bool) (rules.RelValue, error) {
	tok := p.peek()
	if tok.kind == tokLParen {
		p.next()
		return p.parseValueList()
	}
	if tok.kind != tokWord && tok.kind != tokString {
		return rules.RelValue{}, fmt.Errorf("celfilter: expected a value at position %d, got %q", tok.pos, tok.text)
	}
	p.next()
	if tok.kind == tokWord {
		if items, ok := p.lists[tok.text]; ok {
			return rules.RelValue{List: items}, nil
		}
	}
	if wantList {
		return rules.RelValue{List: []string{tok.text}}, nil
	}
	return rules.RelValue{Scalar: tok.text}, nil
}

func (p *parser) parseValueList() (rules.RelValue, error) {
	var items []string
	if p.peek().kind == tokRParen {
		p.next()
		return rules.RelValue{List: items}, nil
	}
	for {
		t := p.peek()
		if t.kind != tokWord && t.kind != tokString {
			return rules.RelValue{}, fmt.Errorf("celfilter: expected a value in list at position %d, got %q", t.pos, t.text)
		}
		p.next()
		if t.kind == tokWord {
			if expanded, ok := p.lists[t.text]; ok {
				items = append(items, expanded...)
			} else {
				items = append(items, t.text)
			}
		} else {
			items = append(items, t.text)
		}

		switch p.peek().kind {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return rules.RelValue{List: items}, nil
		default:
			return rules.RelValue{}, fmt.Errorf("celfilter: expected ',' or ')' at position %d, got %q", p.peek().pos, p.peek().text)
		}
	}
}

func isWord(t token, text string) bool {
	return t.kind == tokWord && t.text == text
}

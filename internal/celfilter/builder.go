package celfilter

import (
	"fmt"

	"github.com/ruleforge/rulecore/internal/rules"
)

// Builder is the reference ParserBuilder: it validates every field
// reference against the host's per-source registry as the walk streams
// past it, and tracks which evt.type literals the filter pins down so the
// host can report how many event types the compiled rule matches.
type Builder struct {
	source   string
	host     *Host
	evtTypes map[string]struct{}
	nest     int
}

// Nest opens a parenthesized group.
func (b *Builder) Nest() error {
	b.nest++
	return nil
}

// Unnest closes a parenthesized group.
func (b *Builder) Unnest() error {
	if b.nest == 0 {
		return fmt.Errorf("celfilter: unnest without a matching nest")
	}
	b.nest--
	return nil
}

// BoolOp records a boolean connective. The reference builder does not
// generate any storable form of the filter besides event-type accounting,
// so this only validates op is one of the three recognized connectives.
func (b *Builder) BoolOp(op rules.BoolOperator) error {
	switch op {
	case rules.BoolAnd, rules.BoolOr, rules.BoolNot:
		return nil
	default:
		return fmt.Errorf("celfilter: unknown boolean operator %q", op)
	}
}

// RelExpr validates field against the host's field registry for this
// builder's source, and, for the "evt.type" field, records every literal
// event type name the clause pins down.
func (b *Builder) RelExpr(field string, op rules.Operator, value rules.RelValue, index int) error {
	if !b.host.IsDefinedField(b.source, field) {
		return fmt.Errorf("celfilter: nonexistent field %q for source %q", field, b.source)
	}
	if field != "evt.type" {
		return nil
	}
	if value.IsList() {
		for _, v := range value.List {
			b.evtTypes[v] = struct{}{}
		}
		return nil
	}
	if op == rules.OpEq || op == rules.OpEqEq {
		b.evtTypes[value.Scalar] = struct{}{}
	}
	return nil
}

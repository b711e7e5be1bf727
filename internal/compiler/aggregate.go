package compiler

import (
	"slices"
	"time"

	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

// convertAggregate converts an aggregate term into a having condition.
//
// Registered aliases convert the term themselves. Otherwise function
// fields such as p95(transaction.duration) compare their result column
// (p95_transaction_duration), and datetimes other than timestamp become
// epoch seconds.
func (c *Compiler) convertAggregate(t search.AggregateTerm, p *Params) (queryir.Fragment, error) {
	name := t.Key.Name
	if !t.Operator.Valid() {
		return nil, newQueryError(ErrCodeIllegalOperator, name,
			"Operator %s is not a valid condition operator.", t.Operator)
	}
	if alias, ok := p.Aliases[name]; ok {
		frag, err := alias.ConvertAggregate(t)
		if err != nil {
			return nil, newQueryError(ErrCodeInvalidValue, name, "%v", err)
		}
		return frag, nil
	}

	lhs, err := c.aggregateColumn(name, p)
	if err != nil {
		return nil, err
	}

	op := queryir.Op(t.Operator)
	if (t.Operator == search.OpEquals || t.Operator == search.OpNotEquals) && t.Value.IsEmpty() {
		return queryir.Single(queryir.Cond(queryir.Fn("isNull", lhs), op, queryir.Int(1))), nil
	}

	raw := t.Value.Raw
	if ts, ok := t.Value.TimeValue(); ok {
		if name == "timestamp" {
			raw = ts.UTC().Format(time.RFC3339)
		} else {
			raw = ts.Unix()
		}
	}
	lit, err := literal(raw, t.Operator.IsList())
	if err != nil {
		return nil, newQueryError(ErrCodeInvalidValue, name, "%v", err)
	}
	return queryir.Single(queryir.Cond(lhs, op, lit)), nil
}

// aggregateColumn resolves an aggregate field to the column holding its
// result.
func (c *Compiler) aggregateColumn(name string, p *Params) (queryir.Expr, error) {
	fn, args, ok := fields.ParseFunction(name)
	if !ok {
		return c.registry.Field(name, p.fieldScope()), nil
	}
	if !c.registry.IsFunction(fn) && !slices.Contains(p.Functions, fn) {
		return nil, newQueryError(ErrCodeInvalidValue, name, "%s is not a valid function", fn)
	}
	return queryir.Col(fields.FunctionAlias(fn, args)), nil
}

package compiler

import (
	"context"
	"fmt"

	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

// validateSequence checks connective placement in items and, recursively,
// in every group.
func validateSequence(items []search.Item) error {
	var prev search.Item
	for _, item := range items {
		conn, isConn := item.(search.Connective)
		switch {
		case prev == nil && isConn:
			return newQueryError(ErrCodeSyntax, "",
				"Condition is missing on the left side of '%s' operator", conn)
		case isConn && search.IsConnective(prev):
			return newQueryError(ErrCodeSyntax, "",
				"Missing condition in between two condition operators: '%s %s'", prev, conn)
		}
		if g, ok := item.(search.Group); ok {
			if err := validateSequence(g.Children); err != nil {
				return err
			}
		}
		prev = item
	}
	if conn, ok := prev.(search.Connective); ok {
		return newQueryError(ErrCodeSyntax, "",
			"Condition is missing on the right side of '%s' operator", conn)
	}
	return nil
}

// build converts a validated sequence into where and having trees.
func (c *Compiler) build(ctx context.Context, items []search.Item, p *Params, acc *accumulator) (where, having queryir.Tree, err error) {
	terms := make([]search.Item, 0, len(items))
	for _, item := range items {
		if item != search.And {
			terms = append(terms, item)
		}
	}
	return c.buildTerms(ctx, terms, p, acc)
}

// buildTerms works on a sequence with the ANDs removed: adjacency is
// implicit AND.
func (c *Compiler) buildTerms(ctx context.Context, terms []search.Item, p *Params, acc *accumulator) (where, having queryir.Tree, err error) {
	switch len(terms) {
	case 0:
		return nil, nil, nil
	case 1:
		return c.convertItem(ctx, terms[0], p, acc)
	}

	// Split on the first OR so AND runs on either side stay grouped.
	lhs, rhs := terms[:1], terms[1:]
	or := false
	for i, term := range terms {
		if term == search.Or {
			lhs, rhs = terms[:i], terms[i+1:]
			or = true
			break
		}
	}

	lw, lh, err := c.buildTerms(ctx, lhs, p, acc)
	if err != nil {
		return nil, nil, err
	}
	rw, rh, err := c.buildTerms(ctx, rhs, p, acc)
	if err != nil {
		return nil, nil, err
	}

	if !or {
		return queryir.NewAnd(lw, rw), queryir.NewAnd(lh, rh), nil
	}
	if (lw != nil || rw != nil) && (lh != nil || rh != nil) {
		return nil, nil, newQueryError(ErrCodeMixedTree, "",
			"Having an OR between aggregate filters and normal filters is invalid.")
	}
	return queryir.NewOr(lw, rw), queryir.NewOr(lh, rh), nil
}

func (c *Compiler) convertItem(ctx context.Context, item search.Item, p *Params, acc *accumulator) (where, having queryir.Tree, err error) {
	switch it := item.(type) {
	case search.Group:
		return c.build(ctx, it.Children, p, acc)
	case search.Term:
		frag, err := c.formatTerm(ctx, it, p, acc)
		if err != nil {
			return nil, nil, err
		}
		c.logger.Debug("converted term", "field", it.Key.Name, "operator", string(it.Operator), "conditions", len(frag))
		return frag.Tree(), nil, nil
	case search.AggregateTerm:
		frag, err := c.convertAggregate(it, p)
		if err != nil {
			return nil, nil, err
		}
		c.logger.Debug("converted aggregate term", "field", it.Key.Name, "operator", string(it.Operator))
		return nil, frag.Tree(), nil
	case search.Connective:
		return nil, nil, newQueryError(ErrCodeSyntax, "", "unexpected '%s' operator", it)
	default:
		return nil, nil, fmt.Errorf("unsupported search item: %T", item)
	}
}

package compiler

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
)

// convertEnvironment turns "" into a null check on environment and the
// remaining names into one comparison; both are OR-combined.
func (c *Compiler) convertEnvironment(_ context.Context, t search.Term, name string, _ *Params) (queryir.Fragment, error) {
	values, err := termStrings(t)
	if err != nil {
		return nil, err
	}
	values = slices.Clone(values)
	slices.Sort(values)
	values = slices.Compact(values)

	equality := t.Operator.IsEquality()
	col := queryir.Col(name)

	var frag queryir.Fragment
	if i, found := slices.BinarySearch(values, ""); found {
		values = slices.Delete(values, i, i+1)
		if equality {
			frag = append(frag, queryir.IsNull(col))
		} else {
			frag = append(frag, queryir.IsNotNull(col))
		}
	}

	switch {
	case len(values) == 1:
		op := queryir.OpNeq
		if equality {
			op = queryir.OpEq
		}
		frag = append(frag, queryir.Cond(col, op, queryir.Str(values[0])))
	case len(values) > 1:
		op := queryir.OpNotIn
		if equality {
			op = queryir.OpIn
		}
		frag = append(frag, queryir.Cond(col, op, queryir.StrList(values...)))
	}
	return frag, nil
}

// convertMessage searches the message case-insensitively. The position
// functions return 0 when nothing is found, so the operator sense is
// inverted against 0.
func (c *Compiler) convertMessage(_ context.Context, t search.Term, name string, _ *Params) (queryir.Fragment, error) {
	col := queryir.Col(name)
	if t.Value.IsWildcard() {
		// Unanchored: the pattern may match anywhere in the message.
		pattern := t.Value.Resolved().(string)
		pattern = pattern[1 : len(pattern)-1]
		return queryir.Single(queryir.Cond(matchExpr(col, pattern), queryir.Op(t.Operator), queryir.Int(1))), nil
	}
	if t.Value.IsEmpty() {
		op := queryir.OpNeq
		if t.Operator == search.OpEquals {
			op = queryir.OpEq
		}
		return queryir.Single(queryir.Cond(queryir.Fn("equals", col, queryir.Str("")), op, queryir.Int(1))), nil
	}

	op := queryir.OpEq
	if t.Operator.IsEquality() {
		op = queryir.OpNeq
	}
	if t.IsInFilter() {
		return queryir.Single(queryir.Cond(
			queryir.Fn("multiSearchFirstPositionCaseInsensitive",
				queryir.Fn("toString", col), stringArray(t.Value.Strings())),
			op, queryir.Int(0))), nil
	}
	needle, ok := t.Value.Str()
	if !ok {
		return nil, newQueryError(ErrCodeInvalidValue, name, "message filters take a string value")
	}
	return queryir.Single(queryir.Cond(
		queryir.Fn("positionCaseInsensitive", col, queryir.Str(needle)), op, queryir.Int(0))), nil
}

// convertTransactionStatus maps status names to their numeric codes.
func (c *Compiler) convertTransactionStatus(_ context.Context, t search.Term, name string, _ *Params) (queryir.Fragment, error) {
	col := queryir.Col(name)
	if t.Value.IsEmpty() {
		return queryir.Single(queryir.Cond(queryir.Fn("isNull", col), queryir.Op(t.Operator), queryir.Int(1))), nil
	}

	names := t.Value.Strings()
	codes := make([]int64, len(names))
	for i, status := range names {
		code, ok := c.registry.StatusCode(status)
		if !ok {
			return nil, newQueryError(ErrCodeInvalidLiteral, name,
				"Invalid value %s for transaction.status condition. Accepted values are %s",
				status, listWords(c.registry.StatusNames()))
		}
		codes[i] = code
	}

	if t.IsInFilter() {
		return queryir.Single(queryir.Cond(col, queryir.Op(t.Operator), queryir.IntList(codes...))), nil
	}
	if len(codes) != 1 {
		return nil, newQueryError(ErrCodeInvalidValue, name, "transaction.status takes a single status name")
	}
	return queryir.Single(queryir.Cond(col, queryir.Op(t.Operator), queryir.Int(codes[0]))), nil
}

// convertIssueID compares issue ids. "No issue" is NULL on some events and
// 0 on others, so has-style checks coalesce to 0.
func (c *Compiler) convertIssueID(_ context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	lhs := c.registry.Field(name, p.fieldScope())
	op := queryir.Op(t.Operator)

	if t.Value.IsEmpty() {
		return queryir.Single(queryir.Cond(queryir.Fn("coalesce", lhs, queryir.Int(0)), op, queryir.Int(0))), nil
	}

	ids, hasEmpty, err := issueIDs(t.Value)
	if err != nil {
		return nil, newQueryError(ErrCodeInvalidValue, name, "%v", err)
	}
	if hasEmpty {
		lhs = queryir.Fn("coalesce", lhs, queryir.Int(0))
	}
	if t.IsInFilter() {
		return queryir.Single(queryir.Cond(lhs, op, queryir.IntList(ids...))), nil
	}
	if len(ids) != 1 {
		return nil, newQueryError(ErrCodeInvalidValue, name, "%s takes a single issue id", name)
	}
	return queryir.Single(queryir.Cond(lhs, op, queryir.Int(ids[0]))), nil
}

// issueIDs reads issue id values as integers. Empty strings become 0 and
// set hasEmpty.
func issueIDs(v search.Value) (ids []int64, hasEmpty bool, err error) {
	switch raw := v.Raw.(type) {
	case int64:
		return []int64{raw}, false, nil
	case []int64:
		return raw, false, nil
	}
	strs := v.Strings()
	if strs == nil {
		return nil, false, fmt.Errorf("invalid issue id %v", v.Raw)
	}
	ids = make([]int64, len(strs))
	for i, s := range strs {
		if s == "" {
			hasEmpty = true
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid issue id %q", s)
		}
		ids[i] = n
	}
	return ids, hasEmpty, nil
}

// convertUserDisplay compares against the user.display alias expression.
func (c *Compiler) convertUserDisplay(_ context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	expr, ok := c.registry.Expression(name, p.fieldScope())
	if !ok {
		return nil, newQueryError(ErrCodeUnresolvableScope, name, "no %s alias is registered", name)
	}
	op := queryir.Op(t.Operator)
	switch {
	case t.Value.IsEmpty():
		return queryir.Single(queryir.Cond(queryir.Fn("isNull", expr), op, queryir.Int(1))), nil
	case t.Value.IsWildcard():
		return queryir.Single(queryir.Cond(matchExpr(expr, t.Value.Resolved().(string)), op, queryir.Int(1))), nil
	}
	lit, err := literal(t.Value.Raw, t.Operator.IsList())
	if err != nil {
		return nil, newQueryError(ErrCodeInvalidValue, name, "%v", err)
	}
	return queryir.Single(queryir.Cond(expr, op, lit)), nil
}

// boolLiteral reads a 1/0 flag value given as a string or an integer.
func boolLiteral(v search.Value) (value bool, ok bool) {
	switch raw := v.Raw.(type) {
	case string:
		switch raw {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	case int64:
		switch raw {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

func handledCond(fn string, want int64) queryir.Fragment {
	return queryir.Single(queryir.Cond(queryir.Fn(fn), queryir.OpEq, queryir.Int(want)))
}

// convertErrorHandled filters on whether errors were handled. A has-style
// check is the same as handled.
func (c *Compiler) convertErrorHandled(_ context.Context, t search.Term, name string, _ *Params) (queryir.Fragment, error) {
	if t.Value.IsEmpty() {
		want := int64(0)
		if t.Operator == search.OpNotEquals {
			want = 1
		}
		return handledCond("isHandled", want), nil
	}
	handled, ok := boolLiteral(t.Value)
	if !ok {
		return nil, newQueryError(ErrCodeInvalidLiteral, name,
			"Invalid value for error.handled condition. Accepted values are 1, 0")
	}
	if handled {
		return handledCond("isHandled", 1), nil
	}
	return handledCond("notHandled", 1), nil
}

// convertErrorUnhandled is the inverse of convertErrorHandled.
func (c *Compiler) convertErrorUnhandled(_ context.Context, t search.Term, name string, _ *Params) (queryir.Fragment, error) {
	if t.Value.IsEmpty() {
		want := int64(1)
		if t.Operator == search.OpNotEquals {
			want = 0
		}
		return handledCond("isHandled", want), nil
	}
	unhandled, ok := boolLiteral(t.Value)
	if !ok {
		return nil, newQueryError(ErrCodeInvalidLiteral, name,
			"Invalid value for error.unhandled condition. Accepted values are 1, 0")
	}
	if unhandled {
		return handledCond("notHandled", 1), nil
	}
	return handledCond("isHandled", 1), nil
}

// convertKeyTransaction compares the key transaction expression with 1/0.
func (c *Compiler) convertKeyTransaction(_ context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	expr, ok := c.registry.Expression(fields.KeyTransactionAlias, p.fieldScope())
	if !ok {
		return nil, newQueryError(ErrCodeUnresolvableScope, name, "no %s alias is registered", name)
	}
	if t.Value.IsEmpty() {
		op := queryir.OpEq
		if t.Operator == search.OpNotEquals {
			op = queryir.OpNeq
		}
		return queryir.Single(queryir.Cond(expr, op, queryir.Int(0))), nil
	}
	key, valid := boolLiteral(t.Value)
	if !valid {
		return nil, newQueryError(ErrCodeInvalidLiteral, name,
			"Invalid value for team_key_transaction condition. Accepted values are 1, 0")
	}
	want := int64(0)
	if key {
		want = 1
	}
	return queryir.Single(queryir.Cond(expr, queryir.OpEq, queryir.Int(want))), nil
}

// releaseFragment renders a resolved version set as release IN/NOT IN.
func releaseFragment(set releases.VersionSet) queryir.Fragment {
	op := queryir.OpIn
	if set.Negated {
		op = queryir.OpNotIn
	}
	return queryir.Single(queryir.Cond(queryir.Col(fieldRelease), op, queryir.StrList(set.Versions...)))
}

func (c *Compiler) requireResolver(name string) error {
	if c.resolver == nil {
		return newQueryError(ErrCodeUnresolvableScope, name, "no release store is configured")
	}
	return nil
}

func releaseValue(t search.Term, name string) (string, error) {
	v, ok := t.Value.Str()
	if !ok {
		return "", newQueryError(ErrCodeInvalidValue, name, "%s filters take a single string value", name)
	}
	return v, nil
}

func (c *Compiler) convertReleaseStage(ctx context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	if err := c.requireResolver(name); err != nil {
		return nil, err
	}
	stages, err := termStrings(t)
	if err != nil {
		return nil, err
	}
	set, err := c.resolver.ResolveStage(ctx, p.releaseScope(), t.Operator, stages)
	if err != nil {
		return nil, fromResolver(name, err)
	}
	return releaseFragment(set), nil
}

func (c *Compiler) convertSemver(ctx context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	if err := c.requireResolver(name); err != nil {
		return nil, err
	}
	version, err := releaseValue(t, name)
	if err != nil {
		return nil, err
	}
	set, err := c.resolver.ResolveSemver(ctx, p.releaseScope(), t.Operator, version)
	if err != nil {
		return nil, fromResolver(name, err)
	}
	return releaseFragment(set), nil
}

func (c *Compiler) convertSemverPackage(ctx context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	if err := c.requireResolver(name); err != nil {
		return nil, err
	}
	pkg, err := releaseValue(t, name)
	if err != nil {
		return nil, err
	}
	set, err := c.resolver.ResolvePackage(ctx, p.releaseScope(), t.Operator, pkg)
	if err != nil {
		return nil, fromResolver(name, err)
	}
	return releaseFragment(set), nil
}

func (c *Compiler) convertSemverBuild(ctx context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error) {
	if err := c.requireResolver(name); err != nil {
		return nil, err
	}
	build, err := releaseValue(t, name)
	if err != nil {
		return nil, err
	}
	set, err := c.resolver.ResolveBuild(ctx, p.releaseScope(), t.Operator, build)
	if err != nil {
		return nil, fromResolver(name, err)
	}
	return releaseFragment(set), nil
}

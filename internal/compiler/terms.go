package compiler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/eventfilter/internal/ir"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

// Field names with dedicated conversion rules.
const (
	fieldEnvironment       = "environment"
	fieldMessage           = "message"
	fieldTransactionStatus = "transaction.status"
	fieldIssueID           = "issue.id"
	fieldUserDisplay       = "user.display"
	fieldErrorUnhandled    = "error.unhandled"
	fieldErrorHandled      = "error.handled"
	fieldKeyTransaction    = "team_key_transaction"
	fieldReleaseStage      = "release.stage"
	fieldSemver            = "release.version"
	fieldSemverPackage     = "release.package"
	fieldSemverBuild       = "release.build"

	fieldProject     = "project"
	fieldProjectName = "project.name"
	fieldProjectID   = "project_id"
	fieldIssue       = "issue"
	fieldRelease     = "release"
	fieldEventType   = "event.type"
	fieldGroupID     = "group_id"
)

// converter is a dedicated rule for one field.
type converter func(c *Compiler, ctx context.Context, t search.Term, name string, p *Params) (queryir.Fragment, error)

var converters map[string]converter

func init() {
	converters = map[string]converter{
		fieldEnvironment:       (*Compiler).convertEnvironment,
		fieldMessage:           (*Compiler).convertMessage,
		fieldTransactionStatus: (*Compiler).convertTransactionStatus,
		fieldIssueID:           (*Compiler).convertIssueID,
		fieldUserDisplay:       (*Compiler).convertUserDisplay,
		fieldErrorUnhandled:    (*Compiler).convertErrorUnhandled,
		fieldErrorHandled:      (*Compiler).convertErrorHandled,
		fieldKeyTransaction:    (*Compiler).convertKeyTransaction,
		fieldReleaseStage:      (*Compiler).convertReleaseStage,
		fieldSemver:            (*Compiler).convertSemver,
		fieldSemverPackage:     (*Compiler).convertSemverPackage,
		fieldSemverBuild:       (*Compiler).convertSemverBuild,
	}
}

// convertTerm converts one row-filter term. A nil fragment means the term
// needs no condition.
func (c *Compiler) convertTerm(ctx context.Context, t search.Term, p *Params) (queryir.Fragment, error) {
	if !t.Operator.Valid() {
		return nil, newQueryError(ErrCodeIllegalOperator, t.Key.Name,
			"Operator %s is not a valid condition operator.", t.Operator)
	}

	name := t.Key.Name
	// group_id is a real column; a user field of that name is a tag.
	if name == fieldGroupID {
		name = "tags[" + fieldGroupID + "]"
	}

	if c.registry.IsNoConversion(name) {
		return nil, nil
	}
	if conv, ok := converters[name]; ok {
		return conv(c, ctx, t, name, p)
	}

	if c.registry.IsArrayField(name) {
		switch {
		case t.Value.IsWildcard():
			raw, _ := t.Value.Str()
			op := queryir.OpLike
			if t.Operator != search.OpEquals {
				op = queryir.OpNotLike
			}
			return queryir.Single(queryir.Cond(queryir.Col(name), op, queryir.Str(likePattern(raw)))), nil
		case t.IsInFilter():
			op := queryir.OpEq
			if t.Operator != search.OpIn {
				op = queryir.OpNeq
			}
			return queryir.Single(queryir.Cond(
				queryir.Fn("hasAny", queryir.Fn("arrayConcat", queryir.Col(name)), stringArray(t.Value.Strings())),
				op, queryir.Int(1))), nil
		case t.Value.IsEmpty():
			empty := int64(0)
			if t.Operator == search.OpNotEquals {
				empty = 1
			}
			return queryir.Single(queryir.Cond(queryir.Fn("notEmpty", queryir.Col(name)), queryir.OpEq, queryir.Int(empty))), nil
		}
	}

	return c.convertGeneric(t, name, p)
}

// convertGeneric applies the rule for fields without a dedicated one.
func (c *Compiler) convertGeneric(t search.Term, name string, p *Params) (queryir.Fragment, error) {
	raw := t.Value.Raw
	if ts, ok := t.Value.TimeValue(); ok {
		if c.registry.IsTimestampField(name) {
			raw = ts.UTC().Format(time.RFC3339)
		} else {
			raw = ts.Unix() * 1000
		}
	}

	switch name {
	case "trace.span", "trace.parent_span":
		if t.Value.IsWildcard() {
			return nil, newQueryError(ErrCodeInvalidValue, name, "Wildcard conditions are not permitted on %q field.", name)
		}
		if !allStrings(t.Value, isSpanID) {
			return nil, newQueryError(ErrCodeInvalidValue, name,
				"%s must be a valid 16 character hex (containing only digits, or a-f characters)", name)
		}
	case "id", "trace":
		if t.Value.IsWildcard() {
			return nil, newQueryError(ErrCodeInvalidValue, name, "Wildcard conditions are not permitted on %q field.", name)
		}
		if !allStrings(t.Value, isEventID) {
			label := "Filter ID"
			if name == "trace" {
				label = "Filter Trace ID"
			}
			return nil, newQueryError(ErrCodeInvalidValue, name,
				"%s must be a valid UUID hex (32-36 characters long, containing only digits, dashes, or a-f characters)", label)
		}
	}

	lhs := c.registry.Field(name, p.fieldScope())

	// Tags are never null but promoted tag columns can be, so both read
	// a missing tag as ''.
	if t.Key.IsTag {
		lhs = queryir.Fn("ifNull", lhs, queryir.Str(""))
	}

	op := queryir.Op(t.Operator)
	if (t.Operator == search.OpEquals || t.Operator == search.OpNotEquals) && t.Value.IsEmpty() {
		if t.Key.IsTag {
			return queryir.Single(queryir.Cond(lhs, op, queryir.Str(""))), nil
		}
		return queryir.Single(queryir.Cond(queryir.Fn("isNull", lhs), op, queryir.Int(1))), nil
	}

	var cond queryir.Condition
	if t.Value.IsWildcard() {
		cond = queryir.Cond(matchExpr(lhs, t.Value.Resolved().(string)), op, queryir.Int(1))
	} else {
		lit, err := literal(raw, t.Operator.IsList())
		if err != nil {
			return nil, newQueryError(ErrCodeInvalidValue, name, "%v", err)
		}
		cond = queryir.Cond(lhs, op, lit)
	}

	// x != v is NULL when x is NULL; null rows must count as not equal.
	if t.Operator.IsNegation() && !t.Key.IsTag && name != fieldEventType {
		return queryir.Fragment{queryir.Cond(queryir.Fn("isNull", lhs), queryir.OpEq, queryir.Int(1)), cond}, nil
	}
	return queryir.Single(cond), nil
}

// matchExpr builds a case-insensitive regex match.
func matchExpr(lhs queryir.Expr, pattern string) queryir.Expr {
	return queryir.Fn("match", lhs, queryir.Str("(?i)"+pattern))
}

// stringArray builds array('a', 'b', ...) with every element a literal.
func stringArray(vals []string) queryir.Expr {
	args := make([]queryir.Expr, len(vals))
	for i, v := range vals {
		args[i] = queryir.Str(v)
	}
	return queryir.Fn("array", args...)
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)

// likePattern escapes LIKE metacharacters and turns '*' into '%'.
func likePattern(raw string) string {
	return likeReplacer.Replace(raw)
}

// literal converts a term value into a literal. Scalars under a list
// operator become one-element lists.
func literal(raw any, list bool) (queryir.Literal, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return queryir.Literal{}, fmt.Errorf("unsupported value: %w", err)
	}
	if _, isArr := v.(ir.IRArray); list && !isArr {
		v = ir.NewIRArray(v)
	}
	return queryir.Lit(v), nil
}

var spanIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

func isSpanID(s string) bool {
	return spanIDPattern.MatchString(s)
}

// isEventID accepts 32 hex digits, with or without the four dashes.
func isEventID(s string) bool {
	if len(s) != 32 && len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// termStrings returns the term's values for fields that only compare
// names. Datetimes and id lists are rejected.
func termStrings(t search.Term) ([]string, error) {
	vals := t.Value.Strings()
	if vals == nil {
		return nil, newQueryError(ErrCodeInvalidValue, t.Key.Name, "Invalid value %v for '%s:' filter", t.Value.Raw, t.Key.Name)
	}
	return vals, nil
}

// allStrings reports whether every string in v satisfies ok. Non-string
// values never do.
func allStrings(v search.Value, ok func(string) bool) bool {
	vals := v.Strings()
	if vals == nil {
		return false
	}
	for _, s := range vals {
		if !ok(s) {
			return false
		}
	}
	return true
}

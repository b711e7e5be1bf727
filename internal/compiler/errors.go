package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eventfilter/internal/releases"
)

// QueryError reports a query that cannot be compiled. Every QueryError is
// a problem with the query or its scope; store failures are returned as
// wrapped errors instead.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Field is the search key the error concerns, if any.
	Field string
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeSyntax indicates a misplaced connective.
	ErrCodeSyntax QueryErrorCode = "SYNTAX_ERROR"

	// ErrCodeInvalidLiteral indicates a value outside a field's accepted set.
	ErrCodeInvalidLiteral QueryErrorCode = "INVALID_LITERAL"

	// ErrCodeUnresolvableScope indicates a filter that needs scope (such as
	// an organization) or a collaborator the compiler was not given.
	ErrCodeUnresolvableScope QueryErrorCode = "UNRESOLVABLE_SCOPE"

	// ErrCodeIllegalOperator indicates an operator the filter does not support.
	ErrCodeIllegalOperator QueryErrorCode = "ILLEGAL_OPERATOR"

	// ErrCodeMixedTree indicates an OR between aggregate and row filters.
	ErrCodeMixedTree QueryErrorCode = "MIXED_TREE"

	// ErrCodeUnknownProjectOrIssue indicates a project slug or issue short
	// id that does not resolve.
	ErrCodeUnknownProjectOrIssue QueryErrorCode = "UNKNOWN_PROJECT_OR_ISSUE"

	// ErrCodeInvalidValue indicates a malformed value, such as a bad semver
	// or a non-UUID event id.
	ErrCodeInvalidValue QueryErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newQueryError(code QueryErrorCode, field, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Message: fmt.Sprintf(format, args...), Field: field}
}

// CodeOf returns the QueryError code of err, or "" when err is not a
// QueryError.
func CodeOf(err error) QueryErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsSyntaxError returns true if the error is a connective placement error.
// Uses errors.As to handle wrapped errors.
func IsSyntaxError(err error) bool { return CodeOf(err) == ErrCodeSyntax }

// IsInvalidLiteral returns true if the error is an unaccepted literal.
func IsInvalidLiteral(err error) bool { return CodeOf(err) == ErrCodeInvalidLiteral }

// IsUnresolvableScope returns true if the error is a missing scope error.
func IsUnresolvableScope(err error) bool { return CodeOf(err) == ErrCodeUnresolvableScope }

// IsIllegalOperator returns true if the error is an unsupported operator.
func IsIllegalOperator(err error) bool { return CodeOf(err) == ErrCodeIllegalOperator }

// IsMixedTree returns true if the error is an OR of aggregate and row filters.
func IsMixedTree(err error) bool { return CodeOf(err) == ErrCodeMixedTree }

// IsUnknownProjectOrIssue returns true if a project or issue did not resolve.
func IsUnknownProjectOrIssue(err error) bool { return CodeOf(err) == ErrCodeUnknownProjectOrIssue }

// IsInvalidValue returns true if the error is a malformed value.
func IsInvalidValue(err error) bool { return CodeOf(err) == ErrCodeInvalidValue }

// fromResolver maps a resolver error onto the QueryError with the same
// code. Store failures pass through wrapped.
func fromResolver(field string, err error) error {
	var re *releases.Error
	if !errors.As(err, &re) {
		return fmt.Errorf("resolve %s: %w", field, err)
	}
	code := ErrCodeInvalidValue
	switch re.Code {
	case releases.CodeUnresolvableScope:
		code = ErrCodeUnresolvableScope
	case releases.CodeIllegalOperator:
		code = ErrCodeIllegalOperator
	}
	return &QueryError{Code: code, Message: re.Message, Field: field}
}

// listWords joins names as "a", "a and b" or "a, b, and c".
func listWords(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}

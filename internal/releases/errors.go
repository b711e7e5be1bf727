package releases

import (
	"errors"
	"fmt"
)

// Error codes returned by the resolver. The compiler maps each onto its
// own query error code of the same meaning.
const (
	CodeUnresolvableScope = "UNRESOLVABLE_SCOPE"
	CodeIllegalOperator   = "ILLEGAL_OPERATOR"
	CodeInvalidValue      = "INVALID_VALUE"
)

// Error is a resolver error caused by the filter itself rather than the
// release store. Store failures are wrapped and returned as-is.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsCode reports whether err is a resolver Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

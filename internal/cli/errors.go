package cli

import (
	"github.com/roach88/eventfilter/internal/compiler"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No input files found
	ErrCodeLoadFailed    = "E004" // Terms or scenario file could not be parsed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeRegistry      = "E006" // Field registry invalid
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeStore         = "E008" // Release store error
	ErrCodeInvalidOption = "E009" // Invalid flag combination

	// Query errors
	ErrCodeSyntax                = "E101" // Misplaced connective
	ErrCodeInvalidLiteral        = "E102" // Literal not accepted by the field
	ErrCodeUnresolvableScope     = "E103" // Missing organization or environment scope
	ErrCodeIllegalOperator       = "E104" // Operator not supported by the field
	ErrCodeMixedTree             = "E105" // OR between aggregate and row filters
	ErrCodeUnknownProjectOrIssue = "E106" // Project slug or issue short id did not resolve
	ErrCodeInvalidValue          = "E107" // Malformed value
)

// MapQueryErrorCode maps a query error code to a CLI error code.
func MapQueryErrorCode(code compiler.QueryErrorCode) string {
	switch code {
	case compiler.ErrCodeSyntax:
		return ErrCodeSyntax
	case compiler.ErrCodeInvalidLiteral:
		return ErrCodeInvalidLiteral
	case compiler.ErrCodeUnresolvableScope:
		return ErrCodeUnresolvableScope
	case compiler.ErrCodeIllegalOperator:
		return ErrCodeIllegalOperator
	case compiler.ErrCodeMixedTree:
		return ErrCodeMixedTree
	case compiler.ErrCodeUnknownProjectOrIssue:
		return ErrCodeUnknownProjectOrIssue
	case compiler.ErrCodeInvalidValue:
		return ErrCodeInvalidValue
	default:
		return ErrCodeGeneric
	}
}

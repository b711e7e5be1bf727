package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eventfilter/internal/compiler"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // query compiled, command succeeded
	ExitFailure      = 1 // invalid query or failed scenarios
	ExitCommandError = 2 // bad input file, store or registry unavailable
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// an ExitError map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON response.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error half of a JSON response.
type CLIError struct {
	Code    string        `json:"code"` // E0xx command, E1xx query
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails locates an error in the query or in an input file.
type ErrorDetails struct {
	QueryCode string `json:"query_code,omitempty"` // compiler code, e.g. MIXED_TREE
	Field     string `json:"field,omitempty"`      // search field the error is about
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

// location renders file:line:col, or "" when no file is known.
func (d *ErrorDetails) location() string {
	if d == nil || d.File == "" {
		return ""
	}
	if d.Line == 0 {
		return d.File
	}
	return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
}

// OutputFormatter writes command results as text or JSON envelopes.
// Results and errors go to Writer; verbose diagnostics go to ErrWriter so
// JSON on stdout stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// newFormatter builds the formatter for a command from the global flags.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data. Text mode prints it with fmt.Println; commands with
// richer text output write to Writer themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error. In text mode the field and file position are
// always shown; the query code only with --verbose.
func (f *OutputFormatter) Error(code, message string, details *ErrorDetails) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	var b strings.Builder
	if loc := details.location(); loc != "" {
		fmt.Fprintf(&b, "%s: ", loc)
	}
	fmt.Fprintf(&b, "Error [%s]: %s\n", code, message)
	if details != nil && details.Field != "" {
		fmt.Fprintf(&b, "  field: %s\n", details.Field)
	}
	if f.Verbose && details != nil && details.QueryCode != "" {
		fmt.Fprintf(&b, "  code:  %s\n", details.QueryCode)
	}
	_, err := io.WriteString(f.Writer, b.String())
	return err
}

// QueryError reports an invalid query and returns the exit error (exit 1).
func (f *OutputFormatter) QueryError(qe *compiler.QueryError) error {
	_ = f.Error(MapQueryErrorCode(qe.Code), qe.Message, &ErrorDetails{
		QueryCode: string(qe.Code),
		Field:     qe.Field,
	})
	return WrapExitError(ExitFailure, "invalid query", qe)
}

// CommandError reports a command-level failure and returns the exit error
// (exit 2).
func (f *OutputFormatter) CommandError(code, message string) error {
	return f.CommandErrorAt(code, message, nil)
}

// CommandErrorAt is CommandError with a location in an input file.
func (f *OutputFormatter) CommandErrorAt(code, message string, details *ErrorDetails) error {
	_ = f.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/eventfilter/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the compiled output to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Where    string // Compiled where SQL, if any
	Having   string // Compiled having SQL, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Where != "" || e.Having != "" {
		fmt.Fprintf(&buf, "\nCompiled:\n")
		fmt.Fprintf(&buf, "  where:  %s\n", e.Where)
		fmt.Fprintf(&buf, "  having: %s\n", e.Having)
	}
	return buf.String()
}

func newAssertionError(result *Result, typ, expected, actual string) *AssertionError {
	e := &AssertionError{Type: typ, Expected: expected, Actual: actual}
	if result.Where != nil {
		e.Where = result.Where.SQL
	}
	if result.Having != nil {
		e.Having = result.Having.SQL
	}
	return e
}

// EvaluateAssertions runs all assertions and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, assertion := range assertions {
		if err := evaluateAssertion(result, assertion); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, assertion Assertion) error {
	switch assertion.Type {
	case AssertWhereContains:
		return assertContains(result, assertion, result.Where)
	case AssertHavingContains:
		return assertContains(result, assertion, result.Having)
	case AssertRestrictsProjects:
		return assertRestricts(result, assertion, result.ProjectIDs, result.fixtures.projects)
	case AssertRestrictsIssues:
		return assertRestricts(result, assertion, result.GroupIDs, result.fixtures.issues)
	default:
		return fmt.Errorf("unknown assertion type: %s", assertion.Type)
	}
}

// assertContains checks that a compiled clause contains the text.
func assertContains(result *Result, assertion Assertion, clause *Clause) error {
	if clause == nil {
		return newAssertionError(result, assertion.Type,
			fmt.Sprintf("SQL containing %q", assertion.Text), "query did not compile")
	}
	if !strings.Contains(clause.SQL, assertion.Text) {
		return newAssertionError(result, assertion.Type,
			fmt.Sprintf("SQL containing %q", assertion.Text), clause.SQL)
	}
	return nil
}

// assertRestricts checks that a side list holds exactly the seeded ids of
// the named fixtures, in order.
func assertRestricts(result *Result, assertion Assertion, got []int64, ids map[string]int64) error {
	want := make([]int64, 0, len(assertion.Names))
	for _, name := range assertion.Names {
		id, ok := ids[name]
		if !ok {
			return fmt.Errorf("%s: %q was not seeded", assertion.Type, name)
		}
		want = append(want, id)
	}
	if !slices.Equal(got, want) {
		return newAssertionError(result, assertion.Type,
			fmt.Sprintf("%v (%s)", want, strings.Join(assertion.Names, ", ")), fmt.Sprint(got))
	}
	return nil
}

// checkExpect compares the result with the expect clause. Omitted fields
// are not checked.
func checkExpect(result *Result, expect *ExpectClause) {
	if expect == nil {
		return
	}

	if expect.Error != "" {
		switch {
		case result.Failure == nil:
			result.AddError(fmt.Sprintf("expected error %s, query compiled", expect.Error))
		case result.Failure.Code != expect.Error:
			result.AddError(fmt.Sprintf("expected error %s, got %s: %s",
				expect.Error, result.Failure.Code, result.Failure.Message))
		}
		return
	}
	if result.Failure != nil {
		result.AddError(fmt.Sprintf("unexpected error %s: %s", result.Failure.Code, result.Failure.Message))
		return
	}

	checkClause(result, "where", result.Where, expect.Where, expect.WhereArgs)
	checkClause(result, "having", result.Having, expect.Having, expect.HavingArgs)
}

func checkClause(result *Result, name string, got *Clause, sql *string, args []any) {
	if sql != nil && got.SQL != *sql {
		result.AddError(fmt.Sprintf("%s: expected %q, got %q", name, *sql, got.SQL))
	}
	if args == nil {
		return
	}
	// Compare canonically so YAML ints match int64 params.
	want, err := ir.MarshalCanonical(args)
	if err != nil {
		result.AddError(fmt.Sprintf("%s_args: %v", name, err))
		return
	}
	have, err := ir.MarshalCanonical(got.Args)
	if err != nil {
		result.AddError(fmt.Sprintf("%s args: %v", name, err))
		return
	}
	if string(want) != string(have) {
		result.AddError(fmt.Sprintf("%s_args: expected %s, got %s", name, want, have))
	}
}

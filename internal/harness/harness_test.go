package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/search"
)

func strPtr(s string) *string { return &s }

func TestRun_TestdataScenarios(t *testing.T) {
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Projects:    []string{"backend"},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("environment"), Operator: search.OpEquals, Value: search.String("production")},
		},
		Expect: &ExpectClause{
			Where:     strPtr("environment = ?"),
			WhereArgs: []any{"production"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.Where)
	assert.Equal(t, []any{"production"}, result.Where.Args)
	require.NotNil(t, result.Having)
	assert.Equal(t, "1 = 1", result.Having.SQL)
	assert.Empty(t, result.Having.Args)
	assert.Nil(t, result.Failure)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "latest_release.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Where, second.Where)
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expected SQL differs",
		Projects:    []string{"backend"},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("environment"), Operator: search.OpEquals, Value: search.String("production")},
		},
		Expect: &ExpectClause{
			Where:     strPtr("environment != ?"),
			WhereArgs: []any{"staging"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `where: expected "environment != ?", got "environment = ?"`)
	assert.Contains(t, result.Errors[1], `where_args: expected ["staging"], got ["production"]`)
}

func TestRun_UnexpectedQueryError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_error",
		Description: "Unknown project slug",
		Projects:    []string{"backend"},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("project"), Operator: search.OpEquals, Value: search.String("frontend")},
		},
		Expect: &ExpectClause{Where: strPtr("project_id = ?")},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotNil(t, result.Failure)
	assert.Equal(t, "UNKNOWN_PROJECT_OR_ISSUE", result.Failure.Code)
	assert.Nil(t, result.Where)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error UNKNOWN_PROJECT_OR_ISSUE")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_error",
		Description: "Query compiles but an error was expected",
		Projects:    []string{"backend"},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("environment"), Operator: search.OpEquals, Value: search.String("production")},
		},
		Expect: &ExpectClause{Error: "MIXED_TREE"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error MIXED_TREE, query compiled")
}

func TestRun_ScopeRestrictsProjects(t *testing.T) {
	scenario := &Scenario{
		Name:        "scoped",
		Description: "A project outside the scope does not resolve",
		Projects:    []string{"backend", "frontend"},
		Scope:       &ScopeStep{Projects: []string{"backend"}},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("project"), Operator: search.OpEquals, Value: search.String("frontend")},
		},
		Expect: &ExpectClause{Error: "UNKNOWN_PROJECT_OR_ISSUE"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_KeyTransactions(t *testing.T) {
	scenario := &Scenario{
		Name:        "key_transactions",
		Description: "team_key_transaction expands to the seeded key transactions",
		Projects:    []string{"backend"},
		KeyTransactions: []KeyTransactionStep{
			{Project: "backend", Transaction: "/checkout"},
		},
		Query: search.Sequence{
			search.Term{Key: search.NewKey("team_key_transaction"), Operator: search.OpEquals, Value: search.String("1")},
		},
		Assertions: []Assertion{
			{Type: AssertWhereContains, Text: "project_id"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Where.Args, "/checkout")
}

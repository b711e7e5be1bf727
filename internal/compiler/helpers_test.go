package compiler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/compiler"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
	"github.com/roach88/eventfilter/internal/testutil"
)

const (
	testOrg      int64 = 1
	backendID    int64 = 10
	frontendID   int64 = 11
	productionID int64 = 5
	maxReleases        = 3
)

type fixture struct {
	compiler *compiler.Compiler
	releases *testutil.FakeReleaseStore
	lookup   *testutil.FakeLookup
	params   compiler.Params
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := testutil.NewFakeReleaseStore()
	lookup := testutil.NewFakeLookup().
		AddProject(testOrg, "backend", backendID).
		AddProject(testOrg, "frontend", frontendID).
		AddGroup(testOrg, "BACKEND-1", 100).
		AddGroup(testOrg, "FRONTEND-7", 107)

	resolver := releases.NewResolver(store, releases.Options{
		MaxSearchReleases: maxReleases,
		Logger:            logger,
		Registerer:        prometheus.NewRegistry(),
	})

	return &fixture{
		compiler: compiler.New(compiler.Options{
			Resolver: resolver,
			Projects: lookup,
			Groups:   lookup,
			Logger:   logger,
		}),
		releases: store,
		lookup:   lookup,
		params: compiler.Params{
			OrganizationID: testOrg,
			ProjectIDs:     []int64{backendID, frontendID},
			EnvironmentIDs: []int64{productionID},
			Environments:   []string{"production"},
		},
	}
}

func (f *fixture) compile(t *testing.T, items ...search.Item) *compiler.Result {
	t.Helper()
	res, err := f.compiler.Compile(context.Background(), items, f.params)
	require.NoError(t, err)
	return res
}

func (f *fixture) compileErr(t *testing.T, items ...search.Item) error {
	t.Helper()
	_, err := f.compiler.Compile(context.Background(), items, f.params)
	require.Error(t, err)
	return err
}

func term(key string, op search.Operator, value search.Value) search.Term {
	return search.Term{Key: search.NewKey(key), Operator: op, Value: value}
}

func eq(key, value string) search.Term {
	return term(key, search.OpEquals, search.String(value))
}

func agg(key string, op search.Operator, value search.Value) search.AggregateTerm {
	return search.AggregateTerm{Key: search.NewKey(key), Operator: op, Value: value}
}

// render prints a tree with every boolean node parenthesized.
func render(t queryir.Tree) string {
	switch node := t.(type) {
	case nil:
		return "<nil>"
	case queryir.Leaf:
		return node.Condition.String()
	case queryir.And:
		return "(" + render(node.Left) + " AND " + render(node.Right) + ")"
	case queryir.Or:
		return "(" + render(node.Left) + " OR " + render(node.Right) + ")"
	default:
		panic("unexpected tree node")
	}
}

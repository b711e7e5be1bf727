package releases_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
	"github.com/roach88/eventfilter/internal/testutil"
)

const org = 1

func newResolver(t *testing.T, store releases.Store, max int) (*releases.Resolver, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r := releases.NewResolver(store, releases.Options{
		MaxSearchReleases: max,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer:        reg,
	})
	return r, reg
}

func scope() releases.Scope {
	return releases.Scope{OrganizationID: org, ProjectIDs: []int64{10}}
}

func TestNewResolver_Defaults(t *testing.T) {
	r := releases.NewResolver(testutil.NewFakeReleaseStore(), releases.Options{})
	assert.Equal(t, releases.DefaultMaxSearchReleases, r.MaxSearchReleases())
}

func TestResolveSemver(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "1.0.0", "1.1.0", "1.2.0", "2.0.0")
	r, _ := newResolver(t, store, 10)

	set, err := r.ResolveSemver(context.Background(), scope(), search.OpGreater, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"1.1.0", "1.2.0", "2.0.0"}}, set)
	assert.Equal(t, search.OpIn, set.Operator())

	set, err = r.ResolveSemver(context.Background(), scope(), search.OpLess, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.0", "1.1.0", "1.0.0"}, set.Versions)
}

func TestResolveSemver_NegationFlip(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	// Five releases >= 1.0.0, one below it.
	store.AddVersions(org, 10, "0.9.0", "1.0.0", "1.1.0", "1.2.0", "1.3.0", "1.4.0")
	r, reg := newResolver(t, store, 5)

	set, err := r.ResolveSemver(context.Background(), scope(), search.OpGreaterOrEquals, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"0.9.0"}, Negated: true}, set)
	assert.Equal(t, search.OpNotIn, set.Operator())
	assert.Equal(t, 2, store.Lookups())

	expected := `
# HELP eventfilter_release_negation_flips_total Total number of semver filters rewritten as NOT IN over the complementary set.
# TYPE eventfilter_release_negation_flips_total counter
eventfilter_release_negation_flips_total 1
`
	require.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected),
		"eventfilter_release_negation_flips_total"))
}

func TestResolveSemver_ComplementKeepsProjectScope(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "0.9.0", "1.0.0", "1.1.0", "1.2.0", "1.3.0", "1.4.0")
	store.AddVersions(org, 20, "0.1.0", "0.2.0")
	r, _ := newResolver(t, store, 5)

	// Releases of project 20 are outside the scope and stay out of NOT IN.
	set, err := r.ResolveSemver(context.Background(), scope(), search.OpGreaterOrEquals, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"0.9.0"}, Negated: true}, set)
}

func TestResolveSemver_NoFlipWhenComplementNotSmaller(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "1.0.0", "1.1.0", "2.0.0", "2.1.0")
	r, _ := newResolver(t, store, 2)

	// Both sides saturate the bound: keep the IN set closest to the boundary.
	set, err := r.ResolveSemver(context.Background(), scope(), search.OpGreaterOrEquals, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"2.0.0", "2.1.0"}}, set)
}

func TestResolveSemver_NoFlipWhenComplementEmpty(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "1.0.0", "1.1.0")
	r, _ := newResolver(t, store, 2)

	set, err := r.ResolveSemver(context.Background(), scope(), search.OpGreaterOrEquals, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"1.0.0", "1.1.0"}}, set)
}

func TestResolveSemver_EmptySentinel(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	r, reg := newResolver(t, store, 10)

	set, err := r.ResolveSemver(context.Background(), scope(), search.OpEquals, "9.9.9")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{releases.EmptyRelease}}, set)

	count, err := promtestutil.GatherAndCount(reg, "eventfilter_release_empty_results_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResolve_RequiresOrganization(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	r, _ := newResolver(t, store, 10)
	ctx := context.Background()
	noOrg := releases.Scope{ProjectIDs: []int64{10}, EnvironmentIDs: []int64{1}}

	_, err := r.ResolveSemver(ctx, noOrg, search.OpEquals, "1.0.0")
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))
	_, err = r.ResolvePackage(ctx, noOrg, search.OpEquals, "app")
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))
	_, err = r.ResolveBuild(ctx, noOrg, search.OpEquals, "1")
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))
	_, err = r.ResolveStage(ctx, noOrg, search.OpEquals, []string{releases.StageAdopted})
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))
	_, err = r.ResolveLatest(ctx, noOrg, nil)
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))

	assert.Equal(t, 0, store.Lookups())
}

func TestResolveStage(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.Add(org,
		testutil.Release{Version: "a", Projects: []int64{10}, Environments: []testutil.Environment{{ID: 3, Adopted: true}}},
		testutil.Release{Version: "b", Projects: []int64{10}, Environments: []testutil.Environment{{ID: 3}}},
	)
	r, _ := newResolver(t, store, 10)
	ctx := context.Background()
	sc := releases.Scope{OrganizationID: org, ProjectIDs: []int64{10}, EnvironmentIDs: []int64{3}}

	set, err := r.ResolveStage(ctx, sc, search.OpEquals, []string{releases.StageAdopted})
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"a"}}, set)

	set, err = r.ResolveStage(ctx, sc, search.OpNotEquals, []string{releases.StageAdopted})
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"b"}}, set)

	set, err = r.ResolveStage(ctx, sc, search.OpIn, []string{releases.StageReplaced})
	require.NoError(t, err)
	assert.Equal(t, []string{releases.EmptyRelease}, set.Versions)
}

func TestResolveStage_Errors(t *testing.T) {
	r, _ := newResolver(t, testutil.NewFakeReleaseStore(), 10)
	ctx := context.Background()
	one := releases.Scope{OrganizationID: org, EnvironmentIDs: []int64{3}}
	two := releases.Scope{OrganizationID: org, EnvironmentIDs: []int64{3, 4}}

	_, err := r.ResolveStage(ctx, two, search.OpEquals, []string{releases.StageAdopted})
	assert.True(t, releases.IsCode(err, releases.CodeInvalidValue))
	assert.Contains(t, err.Error(), "single environment")

	_, err = r.ResolveStage(ctx, releases.Scope{OrganizationID: org}, search.OpEquals, []string{releases.StageAdopted})
	assert.True(t, releases.IsCode(err, releases.CodeInvalidValue))

	_, err = r.ResolveStage(ctx, one, search.OpEquals, []string{"shipped"})
	assert.True(t, releases.IsCode(err, releases.CodeInvalidValue))
	assert.Contains(t, err.Error(), "adopted, low_adoption, replaced")

	_, err = r.ResolveStage(ctx, one, search.OpGreater, []string{releases.StageAdopted})
	assert.True(t, releases.IsCode(err, releases.CodeIllegalOperator))
}

func TestResolvePackage(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "app@1.0.0", "app@2.0.0", "web@1.0.0")
	r, _ := newResolver(t, store, 10)
	ctx := context.Background()

	set, err := r.ResolvePackage(ctx, scope(), search.OpEquals, "app")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"app@1.0.0", "app@2.0.0"}}, set)

	set, err = r.ResolvePackage(ctx, scope(), search.OpNotEquals, "app")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"web@1.0.0"}}, set)

	_, err = r.ResolvePackage(ctx, scope(), search.OpIn, "app")
	assert.True(t, releases.IsCode(err, releases.CodeIllegalOperator))
}

func TestResolveBuild(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "app@1.0.0+10", "app@1.0.1+20", "app@1.0.2+30")
	r, _ := newResolver(t, store, 10)
	ctx := context.Background()

	set, err := r.ResolveBuild(ctx, scope(), search.OpGreaterOrEquals, "20")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"app@1.0.1+20", "app@1.0.2+30"}}, set)

	set, err = r.ResolveBuild(ctx, scope(), search.OpNotEquals, "20")
	require.NoError(t, err)
	assert.Equal(t, releases.VersionSet{Versions: []string{"app@1.0.0+10", "app@1.0.2+30"}}, set)

	_, err = r.ResolveBuild(ctx, scope(), search.OpIn, "20")
	assert.True(t, releases.IsCode(err, releases.CodeIllegalOperator))
}

func TestResolveLatest(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	store.AddVersions(org, 10, "1.0.0", "1.1.0")
	r, _ := newResolver(t, store, 10)

	got, err := r.ResolveLatest(context.Background(), scope(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.0"}, got)

	got, err = r.ResolveLatest(context.Background(), releases.Scope{OrganizationID: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{releases.EmptyRelease}, got)
}

type storeWithoutLatest struct {
	releases.Store
}

func TestResolveLatest_Unsupported(t *testing.T) {
	r, _ := newResolver(t, storeWithoutLatest{testutil.NewFakeReleaseStore()}, 10)
	_, err := r.ResolveLatest(context.Background(), scope(), nil)
	assert.True(t, releases.IsCode(err, releases.CodeUnresolvableScope))
}

func TestResolve_StoreFailurePropagates(t *testing.T) {
	store := testutil.NewFakeReleaseStore()
	boom := errors.New("connection reset")
	store.FailWith(boom)
	r, reg := newResolver(t, store, 10)

	_, err := r.ResolveSemver(context.Background(), scope(), search.OpEquals, "1.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, releases.IsCode(err, releases.CodeInvalidValue))

	expected := fmt.Sprintf(`
# HELP eventfilter_release_lookup_failures_total Total number of failed release store lookups.
# TYPE eventfilter_release_lookup_failures_total counter
eventfilter_release_lookup_failures_total{kind=%q} 1
`, "semver")
	require.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected),
		"eventfilter_release_lookup_failures_total"))
}

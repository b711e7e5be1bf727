package releases

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/eventfilter/internal/search"
)

// DefaultMaxSearchReleases bounds every release lookup.
const DefaultMaxSearchReleases = 1000

// Options configures a Resolver.
type Options struct {
	// MaxSearchReleases bounds every lookup. Zero means
	// DefaultMaxSearchReleases.
	MaxSearchReleases int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives resolver metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// Scope is the caller scope every lookup runs in.
type Scope struct {
	OrganizationID int64
	ProjectIDs     []int64
	EnvironmentIDs []int64
}

// VersionSet is a resolved release filter: the release column is IN
// Versions, or NOT IN when Negated. Versions is never empty.
type VersionSet struct {
	Versions []string
	Negated  bool
}

// Operator returns IN or NOT IN.
func (s VersionSet) Operator() search.Operator {
	if s.Negated {
		return search.OpNotIn
	}
	return search.OpIn
}

// Resolver turns release filters into version sets. It holds no per-call
// state and is safe for concurrent use.
type Resolver struct {
	store   Store
	max     int
	logger  *slog.Logger
	metrics *metrics
}

// NewResolver creates a Resolver over store.
func NewResolver(store Store, opts Options) *Resolver {
	if opts.MaxSearchReleases <= 0 {
		opts.MaxSearchReleases = DefaultMaxSearchReleases
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		max:     opts.MaxSearchReleases,
		logger:  opts.Logger,
		metrics: newMetrics(opts.Registerer),
	}
}

// MaxSearchReleases returns the lookup bound.
func (r *Resolver) MaxSearchReleases() int {
	return r.max
}

// ResolveStage resolves a release.stage filter. = and != are treated as
// IN and NOT IN. Exactly one environment must be in scope.
func (r *Resolver) ResolveStage(ctx context.Context, scope Scope, op search.Operator, stages []string) (VersionSet, error) {
	if err := requireOrganization(scope); err != nil {
		return VersionSet{}, err
	}
	if len(scope.EnvironmentIDs) != 1 {
		return VersionSet{}, newError(CodeInvalidValue, "Choose a single environment to filter by release stage.")
	}

	switch op {
	case search.OpEquals:
		op = search.OpIn
	case search.OpNotEquals:
		op = search.OpNotIn
	case search.OpIn, search.OpNotIn:
	default:
		return VersionSet{}, newError(CodeIllegalOperator,
			fmt.Sprintf("Invalid operation '%s' for release stage filter.", op))
	}
	for _, stage := range stages {
		if !slices.Contains(Stages, stage) {
			return VersionSet{}, newError(CodeInvalidValue, fmt.Sprintf(
				"Unsupported release.stage value %q. Must be one of: %s.", stage, strings.Join(Stages, ", ")))
		}
	}

	versions, err := r.lookup(kindStage, func() ([]string, error) {
		return r.store.FilterByStage(ctx, scope.OrganizationID, op, stages,
			scope.ProjectIDs, scope.EnvironmentIDs[0], r.max)
	})
	if err != nil {
		return VersionSet{}, err
	}
	return r.finish(kindStage, versions, false), nil
}

// ResolveSemver resolves a release.version filter.
//
// Results are ordered toward the boundary the operator implies
// (descending for < and <=, ascending otherwise) so that a saturated
// lookup keeps the versions closest to it. A saturated lookup triggers the
// negation optimization described in the package doc.
func (r *Resolver) ResolveSemver(ctx context.Context, scope Scope, op search.Operator, version string) (VersionSet, error) {
	if err := requireOrganization(scope); err != nil {
		return VersionSet{}, err
	}
	constraint, err := ParseSemver(version, op)
	if err != nil {
		return VersionSet{}, err
	}

	order := Ascending
	if strings.HasPrefix(string(op), "<") {
		order = Descending
	}

	versions, err := r.lookup(kindSemver, func() ([]string, error) {
		return r.store.FilterBySemver(ctx, scope.OrganizationID, constraint, scope.ProjectIDs, order, r.max)
	})
	if err != nil {
		return VersionSet{}, err
	}

	negated := false
	if len(versions) == r.max {
		complement, err := ParseSemver(version, op.Negate())
		if err != nil {
			return VersionSet{}, err
		}
		excluded, err := r.lookup(kindSemver, func() ([]string, error) {
			return r.store.FilterBySemver(ctx, scope.OrganizationID, complement, scope.ProjectIDs, order.Flip(), r.max)
		})
		if err != nil {
			return VersionSet{}, err
		}
		if len(excluded) > 0 && len(excluded) < len(versions) {
			r.logger.Info("release filter rewritten as NOT IN",
				"version", version,
				"operator", string(op),
				"matched", len(versions),
				"excluded", len(excluded))
			r.metrics.negationFlips.Inc()
			versions = excluded
			negated = true
		}
	}

	return r.finish(kindSemver, versions, negated), nil
}

// ResolvePackage resolves a release.package filter. Only = and != apply.
func (r *Resolver) ResolvePackage(ctx context.Context, scope Scope, op search.Operator, pkg string) (VersionSet, error) {
	if err := requireOrganization(scope); err != nil {
		return VersionSet{}, err
	}
	op, negated := splitNegation(op)
	if op != search.OpEquals {
		return VersionSet{}, newError(CodeIllegalOperator,
			fmt.Sprintf("Invalid operation '%s' for release package filter.", op))
	}

	constraint := SemverConstraint{Comparison: CmpExact, Package: pkg, Version: []int64{}, Negated: negated}
	versions, err := r.lookup(kindPackage, func() ([]string, error) {
		return r.store.FilterBySemver(ctx, scope.OrganizationID, constraint, scope.ProjectIDs, Ascending, r.max)
	})
	if err != nil {
		return VersionSet{}, err
	}
	return r.finish(kindPackage, versions, false), nil
}

// ResolveBuild resolves a release.build filter. != becomes a negated =;
// IN and NOT IN are illegal.
func (r *Resolver) ResolveBuild(ctx context.Context, scope Scope, op search.Operator, build string) (VersionSet, error) {
	if err := requireOrganization(scope); err != nil {
		return VersionSet{}, err
	}
	op, negated := splitNegation(op)
	cmp, err := toComparison(op)
	if err != nil {
		return VersionSet{}, err
	}

	versions, err := r.lookup(kindBuild, func() ([]string, error) {
		return r.store.FilterBySemverBuild(ctx, scope.OrganizationID, cmp, build, scope.ProjectIDs, negated, r.max)
	})
	if err != nil {
		return VersionSet{}, err
	}
	return r.finish(kindBuild, versions, false), nil
}

// ResolveLatest returns the latest release version of each project in
// scope, or the empty sentinel when there is none. The store must
// implement LatestReleaseFinder.
func (r *Resolver) ResolveLatest(ctx context.Context, scope Scope, environments []string) ([]string, error) {
	if err := requireOrganization(scope); err != nil {
		return nil, err
	}
	finder, ok := r.store.(LatestReleaseFinder)
	if !ok {
		return nil, newError(CodeUnresolvableScope, "the release store cannot look up latest releases")
	}

	versions, err := r.lookup(kindLatest, func() ([]string, error) {
		return finder.LatestReleases(ctx, scope.OrganizationID, scope.ProjectIDs, environments)
	})
	if err != nil {
		return nil, err
	}
	return r.finish(kindLatest, versions, false).Versions, nil
}

func (r *Resolver) lookup(kind string, fn func() ([]string, error)) ([]string, error) {
	start := time.Now()
	r.metrics.lookups.WithLabelValues(kind).Inc()

	versions, err := fn()
	r.metrics.lookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.lookupFailures.WithLabelValues(kind).Inc()
		return nil, fmt.Errorf("%s release lookup: %w", kind, err)
	}

	if len(versions) > r.max {
		versions = versions[:r.max]
	}
	if len(versions) == r.max {
		r.metrics.saturated.WithLabelValues(kind).Inc()
	}
	r.logger.Debug("release lookup", "kind", kind, "count", len(versions))
	return versions, nil
}

func (r *Resolver) finish(kind string, versions []string, negated bool) VersionSet {
	if len(versions) == 0 {
		r.metrics.emptyResults.WithLabelValues(kind).Inc()
		return VersionSet{Versions: []string{EmptyRelease}}
	}
	return VersionSet{Versions: versions, Negated: negated}
}

func requireOrganization(scope Scope) error {
	if scope.OrganizationID == 0 {
		return newError(CodeUnresolvableScope, "organization_id is a required param")
	}
	return nil
}

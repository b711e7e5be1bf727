package releases

import (
	"context"

	"github.com/roach88/eventfilter/internal/search"
)

// Order is the sort direction over SemverColumns.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Flip returns the opposite direction.
func (o Order) Flip() Order {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

func (o Order) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// Release stages accepted by release.stage filters.
const (
	StageAdopted     = "adopted"
	StageLowAdoption = "low_adoption"
	StageReplaced    = "replaced"
)

// Stages lists the accepted stages in display order.
var Stages = []string{StageAdopted, StageLowAdoption, StageReplaced}

// Store is the read side of the release store. Every method returns at
// most limit versions; an empty projectIDs means no project restriction.
type Store interface {
	// FilterByStage returns versions whose adoption stage in the single
	// given environment matches (op IN) or does not match (op NOT IN) any
	// of stages, ordered by date added.
	FilterByStage(ctx context.Context, org int64, op search.Operator, stages []string,
		projectIDs []int64, environmentID int64, limit int) ([]string, error)

	// FilterBySemver returns versions satisfying c, ordered over
	// SemverColumns in the given direction.
	FilterBySemver(ctx context.Context, org int64, c SemverConstraint,
		projectIDs []int64, order Order, limit int) ([]string, error)

	// FilterBySemverBuild returns versions whose build matches. Numeric
	// builds compare build_number with cmp; other builds match build_code
	// exactly, or by prefix when they end in '*'. negated inverts the match.
	FilterBySemverBuild(ctx context.Context, org int64, cmp Comparison, build string,
		projectIDs []int64, negated bool, limit int) ([]string, error)
}

// LatestReleaseFinder is an optional Store capability used to expand
// release:latest.
type LatestReleaseFinder interface {
	// LatestReleases returns the most recently added version per project,
	// restricted to releases seen in environments when any are given.
	LatestReleases(ctx context.Context, org int64, projectIDs []int64, environments []string) ([]string, error)
}

package testutil

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
)

// Environment is a release's presence in one environment.
type Environment struct {
	ID        int64
	Name      string
	Adopted   bool
	Unadopted bool
}

// Release is a release as seeded into a FakeReleaseStore.
type Release struct {
	Version      string
	Projects     []int64
	Environments []Environment
}

type fakeRelease struct {
	Release
	id        int64
	dateAdded time.Time
	pkg       string
	parsed    releases.ParsedVersion
	semver    bool
	build     string
}

// FakeReleaseStore is an in-memory releases.Store and
// releases.LatestReleaseFinder with the same matching and ordering rules
// as the SQL store.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeReleaseStore struct {
	mu      sync.Mutex
	clock   *StepClock
	nextID  int64
	byOrg   map[int64][]*fakeRelease
	lookups int
	err     error
}

// NewFakeReleaseStore creates an empty store.
func NewFakeReleaseStore() *FakeReleaseStore {
	return &FakeReleaseStore{
		clock: NewStepClock(),
		byOrg: make(map[int64][]*fakeRelease),
	}
}

// Add seeds releases for an organization. Releases added later are newer.
func (s *FakeReleaseStore) Add(org int64, rels ...Release) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range rels {
		s.nextID++
		pkg, version := releases.SplitRelease(rel.Version)
		parsed, ok := releases.ParseVersion(version)
		s.byOrg[org] = append(s.byOrg[org], &fakeRelease{
			Release:   rel,
			id:        s.nextID,
			dateAdded: s.clock.Now(),
			pkg:       pkg,
			parsed:    parsed,
			semver:    ok,
			build:     parsed.BuildCode,
		})
	}
}

// AddVersions seeds bare versions belonging to one project.
func (s *FakeReleaseStore) AddVersions(org, project int64, versions ...string) {
	for _, v := range versions {
		s.Add(org, Release{Version: v, Projects: []int64{project}})
	}
}

// FailWith makes every subsequent lookup return err.
func (s *FakeReleaseStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Lookups returns how many store methods have been called.
func (s *FakeReleaseStore) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *FakeReleaseStore) begin() error {
	s.lookups++
	return s.err
}

func inProjects(r *fakeRelease, projectIDs []int64) bool {
	if len(projectIDs) == 0 {
		return true
	}
	for _, p := range r.Projects {
		if slices.Contains(projectIDs, p) {
			return true
		}
	}
	return false
}

func stageOf(env Environment) string {
	switch {
	case env.Adopted && !env.Unadopted:
		return releases.StageAdopted
	case env.Adopted && env.Unadopted:
		return releases.StageReplaced
	case !env.Adopted && !env.Unadopted:
		return releases.StageLowAdoption
	}
	return ""
}

// FilterByStage implements releases.Store.
func (s *FakeReleaseStore) FilterByStage(_ context.Context, org int64, op search.Operator, stages []string,
	projectIDs []int64, environmentID int64, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}

	var matched []*fakeRelease
	for _, r := range s.byOrg[org] {
		if !inProjects(r, projectIDs) {
			continue
		}
		idx := slices.IndexFunc(r.Environments, func(e Environment) bool { return e.ID == environmentID })
		if idx < 0 {
			continue
		}
		hit := slices.Contains(stages, stageOf(r.Environments[idx]))
		if (op == search.OpIn && hit) || (op == search.OpNotIn && !hit) {
			matched = append(matched, r)
		}
	}
	slices.SortStableFunc(matched, func(a, b *fakeRelease) int {
		return cmp.Or(a.dateAdded.Compare(b.dateAdded), cmp.Compare(a.id, b.id))
	})
	return versions(matched, limit), nil
}

// FilterBySemver implements releases.Store.
func (s *FakeReleaseStore) FilterBySemver(_ context.Context, org int64, c releases.SemverConstraint,
	projectIDs []int64, order releases.Order, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}

	want := c.Values()
	var matched []*fakeRelease
	for _, r := range s.byOrg[org] {
		if !r.semver || !inProjects(r, projectIDs) {
			continue
		}
		if c.Package != "" && (r.pkg == c.Package) == c.Negated {
			continue
		}
		if len(want) > 0 {
			d := compareTuple(semverTuple(r)[:len(want)], want)
			if compares(c.Comparison, d) == c.Negated {
				continue
			}
		}
		matched = append(matched, r)
	}
	slices.SortStableFunc(matched, func(a, b *fakeRelease) int {
		d := compareTuple(semverTuple(a), semverTuple(b))
		if order == releases.Descending {
			d = -d
		}
		return cmp.Or(d, cmp.Compare(a.id, b.id))
	})
	return versions(matched, limit), nil
}

// FilterBySemverBuild implements releases.Store.
func (s *FakeReleaseStore) FilterBySemverBuild(_ context.Context, org int64, cmpOp releases.Comparison, build string,
	projectIDs []int64, negated bool, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}

	number, numeric := buildNumber(build)
	var matched []*fakeRelease
	for _, r := range s.byOrg[org] {
		if !inProjects(r, projectIDs) {
			continue
		}
		var hit bool
		switch {
		case numeric:
			if n, ok := buildNumber(r.build); ok {
				hit = compares(cmpOp, cmp.Compare(n, number))
			}
		case build == "" || strings.HasSuffix(build, "*"):
			hit = r.build != "" && strings.HasPrefix(r.build, strings.TrimSuffix(build, "*"))
		default:
			hit = r.build != "" && r.build == build
		}
		if hit != negated {
			matched = append(matched, r)
		}
	}
	return versions(matched, limit), nil
}

// LatestReleases implements releases.LatestReleaseFinder: the newest
// release of each project in scope, ordered by project id.
func (s *FakeReleaseStore) LatestReleases(_ context.Context, org int64, projectIDs []int64, environments []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}

	latest := make(map[int64]*fakeRelease)
	for _, r := range s.byOrg[org] {
		if len(environments) > 0 && !slices.ContainsFunc(r.Environments, func(e Environment) bool {
			return slices.Contains(environments, e.Name)
		}) {
			continue
		}
		for _, p := range r.Projects {
			if len(projectIDs) > 0 && !slices.Contains(projectIDs, p) {
				continue
			}
			if cur, ok := latest[p]; !ok || r.dateAdded.After(cur.dateAdded) {
				latest[p] = r
			}
		}
	}

	projects := make([]int64, 0, len(latest))
	for p := range latest {
		projects = append(projects, p)
	}
	slices.Sort(projects)

	var out []string
	for _, p := range projects {
		if v := latest[p].Version; !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func versions(rels []*fakeRelease, limit int) []string {
	out := make([]string, 0, min(len(rels), limit))
	for _, r := range rels {
		if len(out) == limit {
			break
		}
		out = append(out, r.Version)
	}
	return out
}

func semverTuple(r *fakeRelease) []any {
	p := r.parsed
	return []any{p.Major, p.Minor, p.Patch, p.Revision, p.PrereleaseCase(), p.Prerelease}
}

func compareTuple(a, b []any) int {
	for i := range a {
		var d int
		switch av := a[i].(type) {
		case int64:
			d = cmp.Compare(av, b[i].(int64))
		case string:
			d = strings.Compare(av, b[i].(string))
		}
		if d != 0 {
			return d
		}
	}
	return 0
}

func compares(c releases.Comparison, d int) bool {
	switch c {
	case releases.CmpGT:
		return d > 0
	case releases.CmpGTE:
		return d >= 0
	case releases.CmpLT:
		return d < 0
	case releases.CmpLTE:
		return d <= 0
	default:
		return d == 0
	}
}

func buildNumber(build string) (int64, bool) {
	if build == "" || strings.TrimLeft(build, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(build, 10, 64)
	return n, err == nil
}

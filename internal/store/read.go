package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
)

var _ releases.Store = (*Store)(nil)
var _ releases.LatestReleaseFinder = (*Store)(nil)

// whereBuilder accumulates AND-ed predicates and their bound values.
type whereBuilder struct {
	preds []string
	args  []any
}

func (w *whereBuilder) add(pred string, args ...any) {
	w.preds = append(w.preds, pred)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) String() string {
	return strings.Join(w.preds, " AND ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (w *whereBuilder) addProjects(projectIDs []int64) {
	if len(projectIDs) == 0 {
		return
	}
	w.add("id IN (SELECT release_id FROM release_projects WHERE project_id IN ("+
		placeholders(len(projectIDs))+"))", int64Args(projectIDs)...)
}

func stagePredicate(stage string) (string, error) {
	switch stage {
	case releases.StageAdopted:
		return "(adopted IS NOT NULL AND unadopted IS NULL)", nil
	case releases.StageReplaced:
		return "(adopted IS NOT NULL AND unadopted IS NOT NULL)", nil
	case releases.StageLowAdoption:
		return "(adopted IS NULL AND unadopted IS NULL)", nil
	default:
		return "", fmt.Errorf("unknown release stage %q", stage)
	}
}

// FilterByStage implements releases.Store.
func (s *Store) FilterByStage(ctx context.Context, org int64, op search.Operator, stages []string,
	projectIDs []int64, environmentID int64, limit int) ([]string, error) {
	preds := make([]string, 0, len(stages))
	for _, stage := range stages {
		p, err := stagePredicate(stage)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	var match string
	switch op {
	case search.OpIn:
		if len(preds) == 0 {
			match = "1 = 0"
		} else {
			match = "(" + strings.Join(preds, " OR ") + ")"
		}
	case search.OpNotIn:
		if len(preds) == 0 {
			match = "1 = 1"
		} else {
			match = "NOT (" + strings.Join(preds, " OR ") + ")"
		}
	default:
		return nil, fmt.Errorf("unsupported stage operator %q", op)
	}

	var w whereBuilder
	w.add("organization_id = ?", org)
	w.add("id IN (SELECT release_id FROM release_project_environments WHERE environment_id = ? AND "+
		match+")", environmentID)
	w.addProjects(projectIDs)

	query := `
		SELECT version FROM releases
		WHERE ` + w.String() + `
		ORDER BY date_added ASC, id ASC
		LIMIT ?`
	return s.versions(ctx, query, append(w.args, limit)...)
}

// FilterBySemver implements releases.Store.
func (s *Store) FilterBySemver(ctx context.Context, org int64, c releases.SemverConstraint,
	projectIDs []int64, order releases.Order, limit int) ([]string, error) {
	var w whereBuilder
	w.add("organization_id = ?", org)
	w.add("major IS NOT NULL")
	if c.Package != "" {
		if c.Negated {
			w.add("NOT (package IS NOT NULL AND package = ?)", c.Package)
		} else {
			w.add("package = ?", c.Package)
		}
	}
	w.addProjects(projectIDs)

	if vals := c.Values(); len(vals) > 0 {
		pred := "(" + strings.Join(c.Columns(), ", ") + ") " + c.Comparison.SQL() +
			" (" + placeholders(len(vals)) + ")"
		if c.Negated {
			pred = "NOT " + pred
		}
		w.add(pred, vals...)
	}

	orderBy := make([]string, 0, len(releases.SemverColumns)+1)
	for _, col := range releases.SemverColumns {
		orderBy = append(orderBy, col+" "+order.String())
	}
	orderBy = append(orderBy, "id ASC")

	query := `
		SELECT version FROM releases
		WHERE ` + w.String() + `
		ORDER BY ` + strings.Join(orderBy, ", ") + `
		LIMIT ?`
	return s.versions(ctx, query, append(w.args, limit)...)
}

// FilterBySemverBuild implements releases.Store.
func (s *Store) FilterBySemverBuild(ctx context.Context, org int64, cmp releases.Comparison, build string,
	projectIDs []int64, negated bool, limit int) ([]string, error) {
	var pred string
	var args []any
	if n, ok := parseBuildNumber(build); ok {
		pred = "(build_number IS NOT NULL AND build_number " + cmp.SQL() + " ?)"
		args = []any{n}
	} else if build == "" || strings.HasSuffix(build, "*") {
		prefix := strings.TrimSuffix(build, "*")
		pred = "(build_code IS NOT NULL AND substr(build_code, 1, ?) = ?)"
		args = []any{len(prefix), prefix}
	} else {
		pred = "(build_code IS NOT NULL AND build_code = ?)"
		args = []any{build}
	}
	if negated {
		pred = "NOT " + pred
	}

	var w whereBuilder
	w.add("organization_id = ?", org)
	w.add(pred, args...)
	w.addProjects(projectIDs)

	query := `
		SELECT version FROM releases
		WHERE ` + w.String() + `
		ORDER BY id ASC
		LIMIT ?`
	return s.versions(ctx, query, append(w.args, limit)...)
}

// LatestReleases implements releases.LatestReleaseFinder.
func (s *Store) LatestReleases(ctx context.Context, org int64, projectIDs []int64, environments []string) ([]string, error) {
	var w whereBuilder
	w.add("r.organization_id = ?", org)
	if len(projectIDs) > 0 {
		w.add("rp.project_id IN ("+placeholders(len(projectIDs))+")", int64Args(projectIDs)...)
	}
	if len(environments) > 0 {
		args := make([]any, len(environments))
		for i, e := range environments {
			args[i] = e
		}
		w.add(`r.id IN (
			SELECT rpe.release_id FROM release_project_environments rpe
			JOIN environments e ON e.id = rpe.environment_id
			WHERE e.name IN (`+placeholders(len(environments))+`))`, args...)
	}

	query := `
		SELECT rp.project_id, r.version
		FROM releases r
		JOIN release_projects rp ON rp.release_id = r.id
		WHERE ` + w.String() + `
		ORDER BY rp.project_id ASC, r.date_added DESC, r.id DESC`

	rows, err := s.query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query latest releases: %w", err)
	}
	defer rows.Close()

	var out []string
	seenProject := make(map[int64]bool)
	seenVersion := make(map[string]bool)
	for rows.Next() {
		var project int64
		var version string
		if err := rows.Scan(&project, &version); err != nil {
			return nil, fmt.Errorf("scan latest release: %w", err)
		}
		if seenProject[project] {
			continue
		}
		seenProject[project] = true
		if !seenVersion[version] {
			seenVersion[version] = true
			out = append(out, version)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest releases: %w", err)
	}
	return out, nil
}

// ProjectIDsBySlug maps the given slugs to project ids within the
// organization. Unknown slugs are absent from the result. A non-empty
// projectIDs restricts the search to those projects.
func (s *Store) ProjectIDsBySlug(ctx context.Context, org int64, projectIDs []int64, slugs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	var w whereBuilder
	w.add("organization_id = ?", org)
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		args[i] = slug
	}
	w.add("slug IN ("+placeholders(len(slugs))+")", args...)
	if len(projectIDs) > 0 {
		w.add("id IN ("+placeholders(len(projectIDs))+")", int64Args(projectIDs)...)
	}

	rows, err := s.query(ctx, "SELECT slug, id FROM projects WHERE "+w.String()+" ORDER BY slug ASC, id ASC", w.args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slug string
		var id int64
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out[slug] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// GroupIDsByShortID maps issue short ids (case-insensitively) to issue
// ids. Result keys are the upper-cased short ids.
func (s *Store) GroupIDsByShortID(ctx context.Context, org int64, shortIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(shortIDs))
	if len(shortIDs) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(shortIDs)+1)
	args = append(args, org)
	for _, id := range shortIDs {
		args = append(args, strings.ToUpper(id))
	}

	rows, err := s.query(ctx, `
		SELECT short_id, id FROM issues
		WHERE organization_id = ? AND short_id IN (`+placeholders(len(shortIDs))+`)
		ORDER BY short_id ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var shortID string
		var id int64
		if err := rows.Scan(&shortID, &id); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out[shortID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

// ReleaseRow is a stored release as listed by ListReleases.
type ReleaseRow struct {
	ID        int64
	Version   string
	Package   string
	Semver    bool
	BuildCode string
}

// ListReleases returns an organization's releases, oldest first.
func (s *Store) ListReleases(ctx context.Context, org int64, limit int) ([]ReleaseRow, error) {
	rows, err := s.query(ctx, `
		SELECT id, version, package, major IS NOT NULL, build_code
		FROM releases
		WHERE organization_id = ?
		ORDER BY date_added ASC, id ASC
		LIMIT ?`, org, limit)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer rows.Close()

	var out []ReleaseRow
	for rows.Next() {
		var r ReleaseRow
		var pkg, build sql.NullString
		if err := rows.Scan(&r.ID, &r.Version, &pkg, &r.Semver, &build); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		r.Package = pkg.String
		r.BuildCode = build.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return out, nil
}

func (s *Store) versions(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return out, nil
}

// parseBuildNumber accepts all-digit builds that fit in an int64.
func parseBuildNumber(build string) (int64, bool) {
	if build == "" || strings.TrimLeft(build, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(build, 10, 64)
	return n, err == nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eventfilter/internal/releases"
)

// ReleaseEnvironment is a release's adoption state in one environment of
// one project.
type ReleaseEnvironment struct {
	ProjectID     int64
	EnvironmentID int64
	Adopted       bool
	Unadopted     bool
}

// NewRelease describes a release to insert.
type NewRelease struct {
	Version      string
	ProjectIDs   []int64
	Environments []ReleaseEnvironment
}

// CreateProject returns the id of the project with slug, creating it if
// needed.
func (s *Store) CreateProject(ctx context.Context, org int64, slug string) (int64, error) {
	return s.getOrCreate(ctx, "projects", "slug", org, slug)
}

// CreateEnvironment returns the id of the named environment, creating it
// if needed.
func (s *Store) CreateEnvironment(ctx context.Context, org int64, name string) (int64, error) {
	return s.getOrCreate(ctx, "environments", "name", org, name)
}

// getOrCreate is only called with constant table and column names.
func (s *Store) getOrCreate(ctx context.Context, table, column string, org int64, value string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "SELECT id FROM "+table+" WHERE organization_id = ? AND "+column+" = ?", org, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup %s %q: %w", table, value, err)
	}

	err = s.queryRow(ctx, "INSERT INTO "+table+" (organization_id, "+column+") VALUES (?, ?) RETURNING id", org, value).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", table, value, err)
	}
	return id, nil
}

// CreateIssue inserts an issue. Short ids are stored upper-cased.
func (s *Store) CreateIssue(ctx context.Context, org, projectID int64, shortID string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, `
		INSERT INTO issues (organization_id, project_id, short_id)
		VALUES (?, ?, ?)
		RETURNING id`, org, projectID, strings.ToUpper(shortID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert issue %q: %w", shortID, err)
	}
	return id, nil
}

// AddRelease inserts a release with its project and environment links in
// one transaction. Versions that parse as semver get their components
// stored for semver filtering; all-digit build codes also get a
// build_number.
func (s *Store) AddRelease(ctx context.Context, org int64, rel NewRelease) (id int64, err error) {
	if rel.Version == "" {
		return 0, fmt.Errorf("release version is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := s.clock.Now()
	cols := releaseColumns(rel.Version)
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO releases (
			organization_id, version, package,
			major, minor, patch, revision, prerelease_case, prerelease,
			build_code, build_number, date_added
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		org, rel.Version, cols.pkg,
		cols.major, cols.minor, cols.patch, cols.revision, cols.prereleaseCase, cols.prerelease,
		cols.buildCode, cols.buildNumber, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert release %q: %w", rel.Version, err)
	}

	for _, p := range rel.ProjectIDs {
		if _, err = tx.ExecContext(ctx, s.rebind(
			"INSERT INTO release_projects (release_id, project_id) VALUES (?, ?)"), id, p); err != nil {
			return 0, fmt.Errorf("link release %q to project %d: %w", rel.Version, p, err)
		}
	}

	for _, env := range rel.Environments {
		var adopted, unadopted sql.NullTime
		if env.Adopted {
			adopted = sql.NullTime{Time: now, Valid: true}
		}
		if env.Unadopted {
			unadopted = sql.NullTime{Time: now, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO release_project_environments
				(release_id, project_id, environment_id, adopted, unadopted)
			VALUES (?, ?, ?, ?, ?)`),
			id, env.ProjectID, env.EnvironmentID, adopted, unadopted); err != nil {
			return 0, fmt.Errorf("link release %q to environment %d: %w", rel.Version, env.EnvironmentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit release %q: %w", rel.Version, err)
	}
	return id, nil
}

type releaseRowColumns struct {
	pkg                           sql.NullString
	major, minor, patch, revision sql.NullInt64
	prereleaseCase                sql.NullInt64
	prerelease, buildCode         sql.NullString
	buildNumber                   sql.NullInt64
}

func releaseColumns(release string) releaseRowColumns {
	var c releaseRowColumns
	pkg, version := releases.SplitRelease(release)
	if pkg != "" {
		c.pkg = sql.NullString{String: pkg, Valid: true}
	}

	parsed, ok := releases.ParseVersion(version)
	if !ok {
		return c
	}
	c.major = sql.NullInt64{Int64: parsed.Major, Valid: true}
	c.minor = sql.NullInt64{Int64: parsed.Minor, Valid: true}
	c.patch = sql.NullInt64{Int64: parsed.Patch, Valid: true}
	c.revision = sql.NullInt64{Int64: parsed.Revision, Valid: true}
	c.prereleaseCase = sql.NullInt64{Int64: parsed.PrereleaseCase(), Valid: true}
	c.prerelease = sql.NullString{String: parsed.Prerelease, Valid: true}
	if parsed.BuildCode != "" {
		c.buildCode = sql.NullString{String: parsed.BuildCode, Valid: true}
		if n, ok := parseBuildNumber(parsed.BuildCode); ok {
			c.buildNumber = sql.NullInt64{Int64: n, Valid: true}
		}
	}
	return c
}

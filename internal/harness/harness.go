package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/eventfilter/internal/compiler"
	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/querysql"
	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/store"
	"github.com/roach88/eventfilter/internal/testutil"
)

// defaultOrganization is used when a scenario names none.
const defaultOrganization int64 = 1

// Harness is the scenario execution engine.
// It seeds a fresh store with a deterministic clock for every scenario.
type Harness struct {
	store    *store.Store
	logger   *slog.Logger
	org      int64
	fixtures *fixtures
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, and
// releases are stamped by a step clock so their order is reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Seed projects, environments, issues and releases
// 3. Compile the query against the seeded store
// 4. Render where and having to SQL
// 5. Check the expect clause and assertions
//
// A query rejected with a QueryError is a normal outcome recorded in
// Result.Failure. Any other error aborts the run.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(ctx, "sqlite3", ":memory:", store.WithClock(testutil.NewStepClock()))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	org := scenario.Organization
	if org == 0 {
		org = defaultOrganization
	}
	h := &Harness{
		store:    st,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		org:      org,
		fixtures: newFixtures(),
	}

	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	resolver := releases.NewResolver(st, releases.Options{
		MaxSearchReleases: scenario.MaxSearchReleases,
		Logger:            h.logger,
	})
	c := compiler.New(compiler.Options{
		Resolver: resolver,
		Projects: st,
		Groups:   st,
		Logger:   h.logger,
	})

	result := NewResult()
	result.fixtures = h.fixtures

	compiled, err := c.Compile(ctx, scenario.Query, h.params(scenario))
	if err != nil {
		var qe *compiler.QueryError
		if !errors.As(err, &qe) {
			return nil, fmt.Errorf("failed to compile query: %w", err)
		}
		result.Failure = &QueryFailure{Code: string(qe.Code), Message: qe.Message}
	} else if err := record(result, compiled); err != nil {
		return nil, err
	}

	checkExpect(result, scenario.Expect)
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario completed", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

// seed creates the scenario's fixtures in declaration order so the ids
// the store assigns are stable.
func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	for _, slug := range scenario.Projects {
		id, err := h.store.CreateProject(ctx, h.org, slug)
		if err != nil {
			return err
		}
		h.fixtures.projects[slug] = id
	}
	for _, name := range scenario.Environments {
		id, err := h.store.CreateEnvironment(ctx, h.org, name)
		if err != nil {
			return err
		}
		h.fixtures.environments[name] = id
	}
	for i, issue := range scenario.Issues {
		id, err := h.store.CreateIssue(ctx, h.org, h.fixtures.projects[issue.Project], issue.ShortID)
		if err != nil {
			return fmt.Errorf("issue %d: %w", i, err)
		}
		h.fixtures.issues[issue.ShortID] = id
	}

	for i, rel := range scenario.Releases {
		release := store.NewRelease{Version: rel.Version}
		for _, slug := range rel.Projects {
			projectID := h.fixtures.projects[slug]
			release.ProjectIDs = append(release.ProjectIDs, projectID)
			for _, env := range rel.Environments {
				release.Environments = append(release.Environments, store.ReleaseEnvironment{
					ProjectID:     projectID,
					EnvironmentID: h.fixtures.environments[env.Name],
					Adopted:       env.Adopted,
					Unadopted:     env.Unadopted,
				})
			}
		}
		if _, err := h.store.AddRelease(ctx, h.org, release); err != nil {
			return fmt.Errorf("release %d: %w", i, err)
		}
	}
	return nil
}

// params builds the compile scope from the scenario.
func (h *Harness) params(scenario *Scenario) compiler.Params {
	projects, environments := scenario.Projects, scenario.Environments
	if scenario.Scope != nil {
		if scenario.Scope.Projects != nil {
			projects = scenario.Scope.Projects
		}
		if scenario.Scope.Environments != nil {
			environments = scenario.Scope.Environments
		}
	}

	p := compiler.Params{OrganizationID: h.org}
	for _, slug := range projects {
		p.ProjectIDs = append(p.ProjectIDs, h.fixtures.projects[slug])
	}
	for _, name := range environments {
		p.EnvironmentIDs = append(p.EnvironmentIDs, h.fixtures.environments[name])
		p.Environments = append(p.Environments, name)
	}
	for _, kt := range scenario.KeyTransactions {
		p.KeyTransactions = append(p.KeyTransactions, fields.KeyTransaction{
			ProjectID:   h.fixtures.projects[kt.Project],
			Transaction: kt.Transaction,
		})
	}
	return p
}

// record renders a compiled query into the result.
func record(result *Result, compiled *compiler.Result) error {
	sql := querysql.NewSQLCompiler()

	where, whereArgs, err := sql.Compile(compiled.Where)
	if err != nil {
		return fmt.Errorf("failed to render where: %w", err)
	}
	having, havingArgs, err := sql.Compile(compiled.Having)
	if err != nil {
		return fmt.Errorf("failed to render having: %w", err)
	}
	fingerprint, err := compiled.Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to fingerprint query: %w", err)
	}

	result.Where = &Clause{SQL: where, Args: nonNil(whereArgs)}
	result.Having = &Clause{SQL: having, Args: nonNil(havingArgs)}
	result.ProjectIDs = append(result.ProjectIDs, compiled.ProjectIDs...)
	result.GroupIDs = append(result.GroupIDs, compiled.GroupIDs...)
	result.Fingerprint = fingerprint
	return nil
}

func nonNil(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

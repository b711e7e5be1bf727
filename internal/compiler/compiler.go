package compiler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/ir"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
)

// ProjectLookup resolves project slugs within an organization.
type ProjectLookup interface {
	// ProjectIDsBySlug returns the ids of the slugs that exist. A
	// non-empty projectIDs restricts the search to those projects.
	ProjectIDsBySlug(ctx context.Context, org int64, projectIDs []int64, slugs []string) (map[string]int64, error)
}

// GroupLookup resolves issue short ids within an organization.
type GroupLookup interface {
	// GroupIDsByShortID returns issue ids keyed by upper-cased short id.
	GroupIDsByShortID(ctx context.Context, org int64, shortIDs []string) (map[string]int64, error)
}

// Options configures a Compiler. Registry defaults to fields.Default().
// Resolver, Projects and Groups may be nil; queries that need a missing
// collaborator fail with UNRESOLVABLE_SCOPE.
type Options struct {
	Registry *fields.Registry
	Resolver *releases.Resolver
	Projects ProjectLookup
	Groups   GroupLookup
	Logger   *slog.Logger
}

// Compiler converts search sequences into condition trees.
type Compiler struct {
	registry *fields.Registry
	resolver *releases.Resolver
	projects ProjectLookup
	groups   GroupLookup
	logger   *slog.Logger
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.Registry == nil {
		opts.Registry = fields.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Compiler{
		registry: opts.Registry,
		resolver: opts.Resolver,
		projects: opts.Projects,
		groups:   opts.Groups,
		logger:   opts.Logger,
	}
}

// Params scopes one compile call.
type Params struct {
	// OrganizationID is required by release, project and issue filters.
	// Zero means absent.
	OrganizationID int64

	// ProjectIDs is the project scope; empty means unrestricted.
	ProjectIDs []int64

	// EnvironmentIDs is the environment scope. release.stage filters need
	// exactly one.
	EnvironmentIDs []int64

	// Environments are environment names, used to expand release:latest.
	Environments []string

	// Aliases are aggregate fields with their own conversion rule.
	Aliases map[string]fields.AggregateAlias

	// Functions are aggregate function names accepted in addition to the
	// registry's.
	Functions []string

	// KeyTransactions feed the team_key_transaction expression.
	KeyTransactions []fields.KeyTransaction
}

func (p *Params) releaseScope() releases.Scope {
	return releases.Scope{
		OrganizationID: p.OrganizationID,
		ProjectIDs:     p.ProjectIDs,
		EnvironmentIDs: p.EnvironmentIDs,
	}
}

func (p *Params) fieldScope() fields.Scope {
	return fields.Scope{KeyTransactions: p.KeyTransactions}
}

// Result is a compiled query.
type Result struct {
	// Where filters rows. Nil means no row filter.
	Where queryir.Tree

	// Having filters aggregated results. Nil means no aggregate filter.
	Having queryir.Tree

	// ProjectIDs are projects named by equality project filters, in
	// query order. Not deduplicated.
	ProjectIDs []int64

	// GroupIDs are issue ids named by equality issue.id filters, in query
	// order. Not deduplicated.
	GroupIDs []int64
}

// Fingerprint returns a content hash of the compiled trees and side
// lists. Compiling the same query against the same data always yields the
// same fingerprint.
func (r *Result) Fingerprint() (string, error) {
	where, err := queryir.FunctionForm(r.Where)
	if err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	having, err := queryir.FunctionForm(r.Having)
	if err != nil {
		return "", fmt.Errorf("having: %w", err)
	}
	return ir.Fingerprint(ir.DomainQuery, ir.IRObject{
		"format":      ir.IRString(ir.FormatVersion),
		"where":       where,
		"having":      having,
		"project_ids": ir.Ints(r.ProjectIDs...),
		"group_ids":   ir.Ints(r.GroupIDs...),
	})
}

// Compile converts a search sequence. Connective placement is checked
// across the whole sequence, groups included, before any term is
// converted.
func (c *Compiler) Compile(ctx context.Context, items []search.Item, params Params) (*Result, error) {
	if err := validateSequence(items); err != nil {
		return nil, err
	}

	var acc accumulator
	where, having, err := c.build(ctx, items, &params, &acc)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("compiled query",
		"where_conditions", len(queryir.Leaves(where)),
		"having_conditions", len(queryir.Leaves(having)),
		"project_ids", len(acc.projectIDs),
		"group_ids", len(acc.groupIDs))

	return &Result{
		Where:      where,
		Having:     having,
		ProjectIDs: acc.projectIDs,
		GroupIDs:   acc.groupIDs,
	}, nil
}

// accumulator collects side lists across the whole traversal.
type accumulator struct {
	projectIDs []int64
	groupIDs   []int64
}

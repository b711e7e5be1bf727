package compiler

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

// formatTerm handles the terms that are rewritten before conversion
// (project, issue, issue.id and release:latest) and routes everything
// else to convertTerm. Project and issue restrictions are recorded in acc.
func (c *Compiler) formatTerm(ctx context.Context, t search.Term, p *Params, acc *accumulator) (queryir.Fragment, error) {
	switch name := t.Key.Name; {
	case name == fieldProject || name == fieldProjectName:
		return c.formatProject(ctx, t, p, acc)
	case name == fieldIssueID && !t.Value.IsEmpty():
		return c.formatIssueID(ctx, t, p, acc)
	case name == fieldIssue:
		return c.formatIssue(ctx, t, p)
	case name == fieldRelease && hasLatest(t.Value):
		return c.formatLatestRelease(ctx, t, p)
	}
	return c.convertTerm(ctx, t, p)
}

func (c *Compiler) formatProject(ctx context.Context, t search.Term, p *Params, acc *accumulator) (queryir.Fragment, error) {
	name := t.Key.Name
	if t.Operator == search.OpEquals && t.Value.IsEmpty() {
		return nil, newQueryError(ErrCodeInvalidValue, name, "Invalid query for 'has' search: 'project' cannot be empty.")
	}
	if c.projects == nil {
		return nil, newQueryError(ErrCodeUnresolvableScope, name, "no project lookup is configured")
	}

	slugs, err := termStrings(t)
	if err != nil {
		return nil, err
	}
	found, err := c.projects.ProjectIDsBySlug(ctx, p.OrganizationID, p.ProjectIDs, slugs)
	if err != nil {
		return nil, fmt.Errorf("resolve projects: %w", err)
	}

	var missing []string
	for _, slug := range slugs {
		if _, ok := found[slug]; !ok {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 && t.Operator.IsEquality() {
		return nil, newQueryError(ErrCodeUnknownProjectOrIssue, name,
			"Invalid query. Project(s) %s do not exist or are not actively selected.", listWords(missing))
	}

	ids := make([]int64, 0, len(found))
	for _, id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	value := search.Int(ids[0])
	if t.IsInFilter() {
		value = search.Ints(ids...)
	}
	frag, err := c.convertTerm(ctx, search.Term{Key: search.NewKey(fieldProjectID), Operator: t.Operator, Value: value}, p)
	if err != nil {
		return nil, err
	}
	if t.Operator.IsEquality() {
		acc.projectIDs = append(acc.projectIDs, ids...)
	}
	return frag, nil
}

// formatIssueID moves equality issue.id filters into the group id side
// list. They produce no condition.
func (c *Compiler) formatIssueID(ctx context.Context, t search.Term, p *Params, acc *accumulator) (queryir.Fragment, error) {
	if !t.Operator.IsEquality() {
		return c.convertTerm(ctx, t, p)
	}
	ids, hasEmpty, err := issueIDs(t.Value)
	if err != nil {
		return nil, newQueryError(ErrCodeInvalidValue, t.Key.Name, "%v", err)
	}
	if hasEmpty {
		// "No issue" cannot be a group id restriction.
		return c.convertTerm(ctx, t, p)
	}
	acc.groupIDs = append(acc.groupIDs, ids...)
	return nil, nil
}

// isNoIssue reports whether an issue value means "no issue".
func isNoIssue(v string) bool {
	return v == "" || v == "unknown"
}

// formatIssue resolves issue short ids and converts the term as issue.id.
func (c *Compiler) formatIssue(ctx context.Context, t search.Term, p *Params) (queryir.Fragment, error) {
	name := t.Key.Name
	raw, err := termStrings(t)
	if err != nil {
		return nil, err
	}
	var shortIDs, values []string
	for _, v := range raw {
		if isNoIssue(v) {
			values = append(values, "")
		} else {
			shortIDs = append(shortIDs, v)
		}
	}

	if len(shortIDs) > 0 {
		if p.OrganizationID == 0 {
			return nil, newQueryError(ErrCodeUnresolvableScope, name, "organization_id is a required param")
		}
		if c.groups == nil {
			return nil, newQueryError(ErrCodeUnresolvableScope, name, "no issue lookup is configured")
		}
		found, err := c.groups.GroupIDsByShortID(ctx, p.OrganizationID, shortIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve issues: %w", err)
		}

		var missing []string
		ids := make([]int64, 0, len(found))
		for _, short := range shortIDs {
			id, ok := found[strings.ToUpper(short)]
			if !ok {
				missing = append(missing, short)
				continue
			}
			ids = append(ids, id)
		}
		if len(missing) > 0 && t.Operator.IsEquality() {
			return nil, newQueryError(ErrCodeUnknownProjectOrIssue, name,
				"Invalid value %s for 'issue:' filter", listWords(missing))
		}
		slices.Sort(ids)
		for _, id := range slices.Compact(ids) {
			values = append(values, strconv.FormatInt(id, 10))
		}
	}

	if len(values) == 0 {
		return nil, nil
	}
	value := search.String(values[0])
	if t.IsInFilter() {
		value = search.List(values...)
	}
	return c.convertTerm(ctx, search.Term{Key: search.NewKey(fieldIssueID), Operator: t.Operator, Value: value}, p)
}

func hasLatest(v search.Value) bool {
	return slices.Contains(v.Strings(), "latest")
}

// formatLatestRelease replaces "latest" with the newest release of each
// project in scope and compares release against the expanded list.
func (c *Compiler) formatLatestRelease(ctx context.Context, t search.Term, p *Params) (queryir.Fragment, error) {
	name := t.Key.Name
	if err := c.requireResolver(name); err != nil {
		return nil, err
	}

	var versions []string
	for _, v := range t.Value.Strings() {
		if v != "latest" {
			versions = append(versions, v)
			continue
		}
		latest, err := c.resolver.ResolveLatest(ctx, p.releaseScope(), p.Environments)
		if err != nil {
			return nil, fromResolver(name, err)
		}
		versions = append(versions, latest...)
	}

	op := t.Operator
	switch op {
	case search.OpEquals:
		op = search.OpIn
	case search.OpNotEquals:
		op = search.OpNotIn
	}
	return c.convertTerm(ctx, search.Term{Key: t.Key, Operator: op, Value: search.List(versions...)}, p)
}

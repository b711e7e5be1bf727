package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// FakeLookup resolves project slugs and issue short ids from in-memory
// tables. It satisfies the compiler's ProjectLookup and GroupLookup.
type FakeLookup struct {
	mu       sync.Mutex
	projects map[int64]map[string]int64
	groups   map[int64]map[string]int64
}

// NewFakeLookup creates an empty lookup.
func NewFakeLookup() *FakeLookup {
	return &FakeLookup{
		projects: make(map[int64]map[string]int64),
		groups:   make(map[int64]map[string]int64),
	}
}

// AddProject registers a project slug within an organization.
func (l *FakeLookup) AddProject(org int64, slug string, id int64) *FakeLookup {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.projects[org] == nil {
		l.projects[org] = make(map[string]int64)
	}
	l.projects[org][slug] = id
	return l
}

// AddGroup registers an issue short id within an organization. Short ids
// match case-insensitively.
func (l *FakeLookup) AddGroup(org int64, shortID string, id int64) *FakeLookup {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.groups[org] == nil {
		l.groups[org] = make(map[string]int64)
	}
	l.groups[org][strings.ToUpper(shortID)] = id
	return l
}

// ProjectIDsBySlug returns the ids of the given slugs that exist in org
// and, when projectIDs is non-empty, are among projectIDs.
func (l *FakeLookup) ProjectIDsBySlug(_ context.Context, org int64, projectIDs []int64, slugs []string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64)
	for _, slug := range slugs {
		id, ok := l.projects[org][slug]
		if !ok {
			continue
		}
		if len(projectIDs) > 0 && !slices.Contains(projectIDs, id) {
			continue
		}
		out[slug] = id
	}
	return out, nil
}

// GroupIDsByShortID returns the ids of the given short ids that exist in
// org, keyed by the upper-cased short id.
func (l *FakeLookup) GroupIDsByShortID(_ context.Context, org int64, shortIDs []string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64)
	for _, short := range shortIDs {
		key := strings.ToUpper(short)
		if id, ok := l.groups[org][key]; ok {
			out[key] = id
		}
	}
	return out, nil
}

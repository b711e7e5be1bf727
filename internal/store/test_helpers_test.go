package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/testutil"
)

const testOrg int64 = 1

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), "sqlite3", path, WithClock(testutil.NewStepClock()))
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProject creates a project and returns its id.
func createTestProject(t *testing.T, s *Store, slug string) int64 {
	t.Helper()
	id, err := s.CreateProject(context.Background(), testOrg, slug)
	require.NoError(t, err)
	return id
}

// addTestReleases adds versions to one project, oldest first.
func addTestReleases(t *testing.T, s *Store, project int64, versions ...string) {
	t.Helper()
	for _, v := range versions {
		_, err := s.AddRelease(context.Background(), testOrg, NewRelease{
			Version:    v,
			ProjectIDs: []int64{project},
		})
		require.NoError(t, err, "AddRelease(%q)", v)
	}
}

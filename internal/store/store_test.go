package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		pragma   string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.pragma, tt.expected))
		})
	}
}

func TestOpen_Migrates(t *testing.T) {
	s := createTestStore(t)

	version, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"projects", "environments", "releases", "release_projects",
		"release_project_environments", "issues"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	_, err = s1.CreateProject(ctx, testOrg, "backend")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	defer s2.Close()

	ids, err := s2.ProjectIDsBySlug(ctx, testOrg, nil, []string{"backend"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.ErrorContains(t, err, `unsupported driver "mysql"`)
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	pg := &Store{dialect: DialectPostgres}

	q := "SELECT id FROM releases WHERE organization_id = ? AND id IN (?, ?)"
	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, "SELECT id FROM releases WHERE organization_id = $1 AND id IN ($2, $3)", pg.rebind(q))
}

func TestDialectForDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
	}{
		{"sqlite3", DialectSQLite},
		{"sqlite", DialectSQLite},
		{"pgx", DialectPostgres},
		{"postgres", DialectPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectForDriver(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

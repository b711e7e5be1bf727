package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/search"
)

func newMockStore(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, dialect), mock
}

func TestSQL_PostgresPlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		query string
		args  []driver.Value
		run   func(s *Store) ([]string, error)
	}{
		{
			name: "semver row comparison",
			query: `WHERE organization_id = $1 AND major IS NOT NULL AND package = $2 ` +
				`AND (major, minor) = ($3, $4) ` +
				`ORDER BY major ASC, minor ASC, patch ASC, revision ASC, prerelease_case ASC, prerelease ASC, id ASC LIMIT $5`,
			args: []driver.Value{int64(3), "app", int64(1), int64(2), int64(10)},
			run: func(s *Store) ([]string, error) {
				c, err := releases.ParseSemver("app@1.2.*", search.OpEquals)
				require.NoError(t, err)
				return s.FilterBySemver(context.Background(), 3, c, nil, releases.Ascending, 10)
			},
		},
		{
			name: "build number with project scope",
			query: `WHERE organization_id = $1 AND (build_number IS NOT NULL AND build_number > $2) ` +
				`AND id IN (SELECT release_id FROM release_projects WHERE project_id IN ($3, $4)) ` +
				`ORDER BY id ASC LIMIT $5`,
			args: []driver.Value{int64(3), int64(150), int64(7), int64(8), int64(5)},
			run: func(s *Store) ([]string, error) {
				return s.FilterBySemverBuild(context.Background(), 3, releases.CmpGT, "150", []int64{7, 8}, false, 5)
			},
		},
		{
			name: "negated build prefix",
			query: `WHERE organization_id = $1 AND NOT (build_code IS NOT NULL AND substr(build_code, 1, $2) = $3) ` +
				`ORDER BY id ASC LIMIT $4`,
			args: []driver.Value{int64(3), int64(2), "ab", int64(5)},
			run: func(s *Store) ([]string, error) {
				return s.FilterBySemverBuild(context.Background(), 3, releases.CmpExact, "ab*", nil, true, 5)
			},
		},
		{
			name: "stage not in",
			query: `WHERE organization_id = $1 AND id IN (SELECT release_id FROM release_project_environments ` +
				`WHERE environment_id = $2 AND NOT ((adopted IS NOT NULL AND unadopted IS NULL))) ` +
				`ORDER BY date_added ASC, id ASC LIMIT $3`,
			args: []driver.Value{int64(3), int64(11), int64(5)},
			run: func(s *Store) ([]string, error) {
				return s.FilterByStage(context.Background(), 3, search.OpNotIn,
					[]string{releases.StageAdopted}, nil, 11, 5)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t, DialectPostgres)

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("app@1.2.0"))

			got, err := tt.run(s)
			require.NoError(t, err)
			assert.Equal(t, []string{"app@1.2.0"}, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQL_QueryErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT version FROM releases").WillReturnError(boom)

	c, err := releases.ParseSemver("1.0.0", search.OpEquals)
	require.NoError(t, err)

	_, err = s.FilterBySemver(context.Background(), 3, c, nil, releases.Ascending, 5)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "query releases")
}

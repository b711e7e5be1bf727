package releases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/search"
)

func TestParseSemver(t *testing.T) {
	tests := []struct {
		name  string
		value string
		op    search.Operator
		want  SemverConstraint
	}{
		{
			name:  "bare full version",
			value: "1.2.3",
			op:    search.OpGreater,
			want: SemverConstraint{
				Comparison: CmpGT,
				Version:    []int64{1, 2, 3, 0, 1},
			},
		},
		{
			name:  "package and prerelease",
			value: "app@2.0.0.4-rc1+build7",
			op:    search.OpLessOrEquals,
			want: SemverConstraint{
				Comparison: CmpLTE,
				Package:    "app",
				Version:    []int64{2, 0, 0, 4, 0},
				Prerelease: "rc1",
			},
		},
		{
			name:  "missing components default to zero",
			value: "3",
			op:    search.OpEquals,
			want: SemverConstraint{
				Comparison: CmpExact,
				Version:    []int64{3, 0, 0, 0, 1},
			},
		},
		{
			name:  "not equals is negated exact",
			value: "1.0.0",
			op:    search.OpNotEquals,
			want: SemverConstraint{
				Comparison: CmpExact,
				Version:    []int64{1, 0, 0, 0, 1},
				Negated:    true,
			},
		},
		{
			name:  "wildcard truncates",
			value: "1.2.*",
			op:    search.OpGreater,
			want: SemverConstraint{
				Comparison: CmpExact,
				Version:    []int64{1, 2},
			},
		},
		{
			name:  "X wildcard with package",
			value: "app@1.X",
			op:    search.OpEquals,
			want: SemverConstraint{
				Comparison: CmpExact,
				Package:    "app",
				Version:    []int64{1},
			},
		},
		{
			name:  "package only",
			value: "app@",
			op:    search.OpEquals,
			want: SemverConstraint{
				Comparison: CmpExact,
				Package:    "app",
				Version:    []int64{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSemver(tt.value, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSemver_Errors(t *testing.T) {
	_, err := ParseSemver("1.2.3", search.OpIn)
	assert.True(t, IsCode(err, CodeIllegalOperator))

	_, err = ParseSemver("1.2.3", search.OpNotIn)
	assert.True(t, IsCode(err, CodeIllegalOperator))

	_, err = ParseSemver("1.two.3", search.OpEquals)
	assert.True(t, IsCode(err, CodeInvalidValue))

	_, err = ParseSemver("1.2.3.4.5", search.OpEquals)
	assert.True(t, IsCode(err, CodeInvalidValue))
}

func TestSemverConstraint_ValuesColumns(t *testing.T) {
	full := SemverConstraint{Version: []int64{1, 2, 3, 0, 0}, Prerelease: "beta"}
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(0), int64(0), "beta"}, full.Values())
	assert.Equal(t, SemverColumns, full.Columns())

	prefix := SemverConstraint{Version: []int64{1, 2}}
	assert.Equal(t, []any{int64(1), int64(2)}, prefix.Values())
	assert.Equal(t, []string{"major", "minor"}, prefix.Columns())

	empty := SemverConstraint{Version: []int64{}}
	assert.Empty(t, empty.Values())
	assert.Empty(t, empty.Columns())
}

func TestParseVersion(t *testing.T) {
	v, ok := ParseVersion("1.2.3.4-alpha.1+exp.sha")
	require.True(t, ok)
	assert.Equal(t, ParsedVersion{Major: 1, Minor: 2, Patch: 3, Revision: 4, Prerelease: "alpha.1", BuildCode: "exp.sha"}, v)
	assert.Equal(t, int64(0), v.PrereleaseCase())

	v, ok = ParseVersion("7")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.PrereleaseCase())

	_, ok = ParseVersion("latest")
	assert.False(t, ok)
	_, ok = ParseVersion("1.2.*")
	assert.False(t, ok)
	_, ok = ParseVersion("99999999999999999999")
	assert.False(t, ok)
}

func TestSplitRelease(t *testing.T) {
	pkg, ver := SplitRelease("app@1.0@x")
	assert.Equal(t, "app", pkg)
	assert.Equal(t, "1.0@x", ver)

	pkg, ver = SplitRelease("1.0")
	assert.Equal(t, "", pkg)
	assert.Equal(t, "1.0", ver)
}

func TestComparisonSQL(t *testing.T) {
	assert.Equal(t, "=", CmpExact.SQL())
	assert.Equal(t, ">", CmpGT.SQL())
	assert.Equal(t, ">=", CmpGTE.SQL())
	assert.Equal(t, "<", CmpLT.SQL())
	assert.Equal(t, "<=", CmpLTE.SQL())
}

func TestOrder(t *testing.T) {
	assert.Equal(t, Descending, Ascending.Flip())
	assert.Equal(t, Ascending, Descending.Flip())
	assert.Equal(t, "ASC", Ascending.String())
	assert.Equal(t, "DESC", Descending.String())
}

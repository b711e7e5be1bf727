package releases

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/eventfilter/internal/search"
)

const (
	// FakePackage stands in for the package of bare "1.2.3" versions so
	// they parse like "package@1.2.3".
	FakePackage = "__eventfilter_fake__"

	// EmptyRelease is substituted when a lookup finds nothing, so the
	// release condition stays well formed but matches no rows.
	EmptyRelease = "__eventfilter_empty_release__"
)

// Comparison is the comparison applied to the semver columns.
type Comparison string

const (
	CmpExact Comparison = "exact"
	CmpGT    Comparison = "gt"
	CmpGTE   Comparison = "gte"
	CmpLT    Comparison = "lt"
	CmpLTE   Comparison = "lte"
)

var comparisons = map[search.Operator]Comparison{
	search.OpEquals:          CmpExact,
	search.OpGreater:         CmpGT,
	search.OpGreaterOrEquals: CmpGTE,
	search.OpLess:            CmpLT,
	search.OpLessOrEquals:    CmpLTE,
}

// SQL returns the SQL comparison operator.
func (c Comparison) SQL() string {
	switch c {
	case CmpGT:
		return ">"
	case CmpGTE:
		return ">="
	case CmpLT:
		return "<"
	case CmpLTE:
		return "<="
	default:
		return "="
	}
}

// SemverColumns are the release columns a semver constraint compares
// against, in significance order.
var SemverColumns = []string{"major", "minor", "patch", "revision", "prerelease_case", "prerelease"}

var semverWildcards = map[string]bool{"X": true, "*": true}

// SemverConstraint is a parsed semver filter.
//
// Version holds up to five numeric components: major, minor, patch,
// revision and the prerelease case (1 when there is no prerelease, so
// final releases sort above their prereleases). Prerelease is only part of
// the comparison when all five are present. Wildcard versions such as
// "1.2.*" truncate Version at the wildcard and always compare exactly.
type SemverConstraint struct {
	Comparison Comparison
	Package    string
	Version    []int64
	Prerelease string
	Negated    bool
}

// Values returns the comparison values in SemverColumns order.
func (c SemverConstraint) Values() []any {
	vals := make([]any, 0, len(c.Version)+1)
	for _, v := range c.Version {
		vals = append(vals, v)
	}
	if len(c.Version) == 5 {
		vals = append(vals, c.Prerelease)
	}
	return vals
}

// Columns returns the SemverColumns prefix matching Values.
func (c SemverConstraint) Columns() []string {
	return SemverColumns[:len(c.Values())]
}

// splitNegation turns != into a negated = so stores only deal with
// positive comparisons.
func splitNegation(op search.Operator) (search.Operator, bool) {
	if op == search.OpNotEquals {
		return search.OpEquals, true
	}
	return op, false
}

func toComparison(op search.Operator) (Comparison, error) {
	cmp, ok := comparisons[op]
	if !ok {
		return "", newError(CodeIllegalOperator,
			fmt.Sprintf("Invalid operation '%s' for semantic version filter.", op))
	}
	return cmp, nil
}

var versionPattern = regexp.MustCompile(
	`^(\d+)(?:\.(\d+)(?:\.(\d+)(?:\.(\d+))?)?)?` +
		`(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?` +
		`(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// ParsedVersion is a release version split into its semver parts.
type ParsedVersion struct {
	Major, Minor, Patch, Revision int64
	Prerelease                    string
	BuildCode                     string
}

// PrereleaseCase is 1 for final releases and 0 for prereleases.
func (v ParsedVersion) PrereleaseCase() int64 {
	if v.Prerelease == "" {
		return 1
	}
	return 0
}

// ParseVersion parses "major(.minor(.patch(.revision)))(-pre)(+build)".
// Missing components are zero.
func ParseVersion(version string) (ParsedVersion, bool) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return ParsedVersion{}, false
	}
	var nums [4]int64
	for i := range nums {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return ParsedVersion{}, false
		}
		nums[i] = n
	}
	return ParsedVersion{
		Major:      nums[0],
		Minor:      nums[1],
		Patch:      nums[2],
		Revision:   nums[3],
		Prerelease: m[5],
		BuildCode:  m[6],
	}, true
}

// SplitRelease splits "package@version". Releases without '@' have no
// package.
func SplitRelease(release string) (pkg, version string) {
	if i := strings.Index(release, "@"); i >= 0 {
		return release[:i], release[i+1:]
	}
	return "", release
}

// ParseSemver builds a constraint from a "package@version" or bare
// "version" filter value.
//
// != becomes a negated =; IN and NOT IN are illegal. A full version
// yields all six components. Otherwise the value is read as a wildcard
// prefix ("1.*", "2.3.X"): at most four dot-separated integer parts, cut
// at the first wildcard, compared exactly. Any other non-integer part is
// an invalid semver error.
func ParseSemver(value string, op search.Operator) (SemverConstraint, error) {
	op, negated := splitNegation(op)
	cmp, err := toComparison(op)
	if err != nil {
		return SemverConstraint{}, err
	}

	if !strings.Contains(value, "@") {
		value = FakePackage + "@" + value
	}
	pkg, version := SplitRelease(value)
	if pkg == FakePackage {
		pkg = ""
	}

	if parsed, ok := ParseVersion(version); ok {
		return SemverConstraint{
			Comparison: cmp,
			Package:    pkg,
			Version: []int64{
				parsed.Major, parsed.Minor, parsed.Patch, parsed.Revision,
				parsed.PrereleaseCase(),
			},
			Prerelease: parsed.Prerelease,
			Negated:    negated,
		}, nil
	}

	parts := []int64{}
	if version != "" {
		for _, part := range strings.SplitN(version, ".", 4) {
			if semverWildcards[part] {
				break
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return SemverConstraint{}, newError(CodeInvalidValue, invalidSemverMessage)
			}
			parts = append(parts, n)
		}
	}
	return SemverConstraint{
		Comparison: CmpExact,
		Package:    pkg,
		Version:    parts,
		Negated:    negated,
	}, nil
}

const invalidSemverMessage = "Invalid format for semver. Semver must follow the format " +
	"`package@major.minor.patch(.revision)(-prerelease)(+build)`; `package@` is optional."

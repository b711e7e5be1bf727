package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eventfilter/internal/search"
)

// Scenario defines a query compilation scenario: the releases, projects
// and issues to seed, the query scope, the search sequence and what it
// must compile to.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Organization defaults to 1.
	Organization int64 `yaml:"organization,omitempty"`

	// MaxSearchReleases bounds release lookups. Zero uses the resolver
	// default.
	MaxSearchReleases int `yaml:"max_search_releases,omitempty"`

	// Projects are project slugs created in order.
	Projects []string `yaml:"projects"`

	// Environments are environment names created in order.
	Environments []string `yaml:"environments,omitempty"`

	// Issues are created after projects.
	Issues []IssueStep `yaml:"issues,omitempty"`

	// Releases are added oldest first.
	Releases []ReleaseStep `yaml:"releases,omitempty"`

	// KeyTransactions feed team_key_transaction.
	KeyTransactions []KeyTransactionStep `yaml:"key_transactions,omitempty"`

	// Scope restricts the compile call. When empty every seeded project
	// and environment is in scope.
	Scope *ScopeStep `yaml:"scope,omitempty"`

	// Query is the search sequence to compile.
	Query search.Sequence `yaml:"query"`

	// Expect specifies the exact compiled output. Omitted fields are not
	// checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate parts of the compiled output.
	// Supported types: where_contains, having_contains, restricts_projects,
	// restricts_issues
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// IssueStep seeds one issue.
type IssueStep struct {
	Project string `yaml:"project"`
	ShortID string `yaml:"short_id"`
}

// ReleaseStep seeds one release. Environments apply to every project of
// the release.
type ReleaseStep struct {
	Version      string            `yaml:"version"`
	Projects     []string          `yaml:"projects"`
	Environments []EnvironmentStep `yaml:"environments,omitempty"`
}

// EnvironmentStep is a release's adoption state in one environment.
type EnvironmentStep struct {
	Name      string `yaml:"name"`
	Adopted   bool   `yaml:"adopted,omitempty"`
	Unadopted bool   `yaml:"unadopted,omitempty"`
}

// KeyTransactionStep marks a transaction as key for a project.
type KeyTransactionStep struct {
	Project     string `yaml:"project"`
	Transaction string `yaml:"transaction"`
}

// ScopeStep names the projects and environments a query runs in.
type ScopeStep struct {
	Projects     []string `yaml:"projects,omitempty"`
	Environments []string `yaml:"environments,omitempty"`
}

// ExpectClause specifies the expected compiled output.
type ExpectClause struct {
	Where      *string `yaml:"where,omitempty"`
	WhereArgs  []any   `yaml:"where_args,omitempty"`
	Having     *string `yaml:"having,omitempty"`
	HavingArgs []any   `yaml:"having_args,omitempty"`

	// Error is the expected query error code.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates part of the compiled output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "where_contains": the where SQL contains Text
	// - "having_contains": the having SQL contains Text
	// - "restricts_projects": the project side list holds exactly Names
	// - "restricts_issues": the group side list holds exactly Names
	Type string `yaml:"type"`

	// Text is the SQL fragment to look for.
	Text string `yaml:"text,omitempty"`

	// Names are project slugs or issue short ids.
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertWhereContains     = "where_contains"
	AssertHavingContains    = "having_contains"
	AssertRestrictsProjects = "restricts_projects"
	AssertRestrictsIssues   = "restricts_issues"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and every
// referenced project and environment is seeded.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Query) == 0 {
		return fmt.Errorf("query is required and must be non-empty")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions are required")
	}

	project := func(where, slug string) error {
		if !slices.Contains(s.Projects, slug) {
			return fmt.Errorf("%s: unknown project %q", where, slug)
		}
		return nil
	}
	environment := func(where, name string) error {
		if !slices.Contains(s.Environments, name) {
			return fmt.Errorf("%s: unknown environment %q", where, name)
		}
		return nil
	}

	for i, issue := range s.Issues {
		if issue.ShortID == "" {
			return fmt.Errorf("issues[%d]: short_id is required", i)
		}
		if err := project(fmt.Sprintf("issues[%d]", i), issue.Project); err != nil {
			return err
		}
	}
	for i, rel := range s.Releases {
		where := fmt.Sprintf("releases[%d]", i)
		if rel.Version == "" {
			return fmt.Errorf("%s: version is required", where)
		}
		for _, p := range rel.Projects {
			if err := project(where, p); err != nil {
				return err
			}
		}
		for _, env := range rel.Environments {
			if err := environment(where, env.Name); err != nil {
				return err
			}
		}
	}
	for i, kt := range s.KeyTransactions {
		if err := project(fmt.Sprintf("key_transactions[%d]", i), kt.Project); err != nil {
			return err
		}
	}
	if s.Scope != nil {
		for _, p := range s.Scope.Projects {
			if err := project("scope", p); err != nil {
				return err
			}
		}
		for _, env := range s.Scope.Environments {
			if err := environment("scope", env); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWhereContains, AssertHavingContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertRestrictsProjects, AssertRestrictsIssues:
		if a.Names == nil {
			return fmt.Errorf("assertions[%d]: names is required for %s (use [] for none)", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

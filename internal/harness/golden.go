package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eventfilter/internal/ir"
)

// Snapshot captures the compiled output of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Where        *Clause       `json:"where,omitempty"`
	Having       *Clause       `json:"having,omitempty"`
	ProjectIDs   []int64       `json:"project_ids,omitempty"`
	GroupIDs     []int64       `json:"group_ids,omitempty"`
	Failure      *QueryFailure `json:"error,omitempty"`
}

// NewSnapshot builds the snapshot of a result. The fingerprint is left
// out so goldens stay readable.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		Where:        result.Where,
		Having:       result.Having,
		ProjectIDs:   result.ProjectIDs,
		GroupIDs:     result.GroupIDs,
		Failure:      result.Failure,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"scenario_name": s.ScenarioName,
	}
	if s.Failure != nil {
		m["error"] = map[string]any{
			"code":    s.Failure.Code,
			"message": s.Failure.Message,
		}
		return m
	}
	clause := func(c *Clause) map[string]any {
		return map[string]any{"sql": c.SQL, "args": nonNil(c.Args)}
	}
	if s.Where != nil {
		m["where"] = clause(s.Where)
	}
	if s.Having != nil {
		m["having"] = clause(s.Having)
	}
	m["project_ids"] = nonNilIDs(s.ProjectIDs)
	m["group_ids"] = nonNilIDs(s.GroupIDs)
	return m
}

// Marshal returns the canonical JSON of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the compiled output against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

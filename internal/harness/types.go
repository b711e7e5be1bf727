package harness

// Clause is a compiled where or having tree rendered as parameterized SQL.
type Clause struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// QueryFailure is the query error a scenario compiled to, if any.
type QueryFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// Where and Having are nil when compilation failed.
	Where  *Clause `json:"where,omitempty"`
	Having *Clause `json:"having,omitempty"`

	// ProjectIDs and GroupIDs are the restriction side lists.
	ProjectIDs []int64 `json:"project_ids"`
	GroupIDs   []int64 `json:"group_ids"`

	// Failure is set when the query was rejected.
	Failure *QueryFailure `json:"failure,omitempty"`

	// Fingerprint is the content hash of the compiled query.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// fixtures maps scenario names to seeded ids for assertions.
	fixtures *fixtures
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		ProjectIDs: []int64{},
		GroupIDs:   []int64{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// fixtures records the ids the store assigned to scenario names.
type fixtures struct {
	projects     map[string]int64
	environments map[string]int64
	issues       map[string]int64
}

func newFixtures() *fixtures {
	return &fixtures{
		projects:     make(map[string]int64),
		environments: make(map[string]int64),
		issues:       make(map[string]int64),
	}
}

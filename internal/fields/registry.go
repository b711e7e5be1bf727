package fields

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/eventfilter/internal/queryir"
)

// Expression is a registry alias: either a plain column rename or a
// function applied to columns.
type Expression struct {
	Column   string   `json:"column,omitempty"`
	Function string   `json:"function,omitempty"`
	Args     []string `json:"args,omitempty"`
}

// Expr converts the alias to a queryir expression.
func (e Expression) Expr() queryir.Expr {
	if e.Function == "" {
		return queryir.Col(e.Column)
	}
	args := make([]queryir.Expr, len(e.Args))
	for i, arg := range e.Args {
		args[i] = queryir.Col(arg)
	}
	return queryir.Fn(e.Function, args...)
}

// Registry is an immutable field registry. Safe for concurrent use.
type Registry struct {
	arrayFields     map[string]bool
	noConversion    map[string]bool
	timestampFields map[string]bool
	aliases         map[string]Expression
	functions       map[string]bool
	statuses        map[string]int64
}

func newRegistry(doc document) *Registry {
	return &Registry{
		arrayFields:     set(doc.ArrayFields),
		noConversion:    set(doc.NoConversion),
		timestampFields: set(doc.TimestampFields),
		aliases:         maps.Clone(doc.Aliases),
		functions:       set(doc.Functions),
		statuses:        maps.Clone(doc.TransactionStatus),
	}
}

func set(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// IsArrayField reports whether name is a list-typed column.
func (r *Registry) IsArrayField(name string) bool { return r.arrayFields[name] }

// IsNoConversion reports whether name produces no condition.
func (r *Registry) IsNoConversion(name string) bool { return r.noConversion[name] }

// IsTimestampField reports whether name keeps datetime values as ISO-8601.
func (r *Registry) IsTimestampField(name string) bool { return r.timestampFields[name] }

// IsFunction reports whether name is a known aggregate function.
func (r *Registry) IsFunction(name string) bool { return r.functions[name] }

// Expression returns the computed expression for an alias. The
// team_key_transaction alias is built from scope.KeyTransactions.
func (r *Registry) Expression(name string, scope Scope) (queryir.Expr, bool) {
	if name == KeyTransactionAlias {
		return KeyTransactionExpr(scope.KeyTransactions), true
	}
	expr, ok := r.aliases[name]
	if !ok {
		return nil, false
	}
	return expr.Expr(), true
}

// Field resolves a field name to the expression to compare against:
// the alias expression when one exists, otherwise the column itself.
func (r *Registry) Field(name string, scope Scope) queryir.Expr {
	if expr, ok := r.Expression(name, scope); ok {
		return expr
	}
	return queryir.Col(name)
}

// StatusCode returns the numeric code for a transaction status name.
func (r *Registry) StatusCode(name string) (int64, bool) {
	code, ok := r.statuses[name]
	return code, ok
}

// StatusNames returns the accepted status names ordered by code.
func (r *Registry) StatusNames() []string {
	names := slices.Collect(maps.Keys(r.statuses))
	slices.SortFunc(names, func(a, b string) int {
		if d := r.statuses[a] - r.statuses[b]; d != 0 {
			if d < 0 {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return names
}

// Aliases returns the alias names in sorted order.
func (r *Registry) Aliases() []string {
	return slices.Sorted(maps.Keys(r.aliases))
}

// Functions returns the aggregate function names in sorted order.
func (r *Registry) Functions() []string {
	return slices.Sorted(maps.Keys(r.functions))
}

var functionPattern = regexp.MustCompile(`^([^(]+)\((.*)\)$`)

var nonWord = regexp.MustCompile(`\W`)

// ParseFunction splits an aggregate field such as
// "p95(transaction.duration)" into the function name and its arguments.
func ParseFunction(field string) (name string, args []string, ok bool) {
	m := functionPattern.FindStringSubmatch(field)
	if m == nil {
		return "", nil, false
	}
	for _, arg := range strings.Split(m[2], ",") {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	return strings.TrimSpace(m[1]), args, true
}

// FunctionAlias returns the result column alias for an aggregate field:
//
//	count()                             -> count
//	p95(transaction.duration)           -> p95_transaction_duration
//	percentile(transaction.duration, 0.5) -> percentile_transaction_duration_0_5
func FunctionAlias(name string, args []string) string {
	cols := nonWord.ReplaceAllString(strings.Join(args, "_"), "_")
	return strings.TrimRight(name+"_"+cols, "_")
}

package fields

import (
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

// KeyTransactionAlias is the field that resolves to "is this a key
// transaction of the caller's team".
const KeyTransactionAlias = "team_key_transaction"

// KeyTransaction identifies a transaction marked as key for a project.
type KeyTransaction struct {
	ProjectID   int64
	Transaction string
}

// Scope carries per-query inputs some aliases need to build their
// expression.
type Scope struct {
	KeyTransactions []KeyTransaction
}

// KeyTransactionExpr builds the boolean expression
//
//	in(tuple(project_id, transaction), tuple(tuple(p1, 't1'), ...))
//
// With no key transactions the expression is the constant toInt8(0).
func KeyTransactionExpr(kts []KeyTransaction) queryir.Expr {
	if len(kts) == 0 {
		return queryir.Fn("toInt8", queryir.Int(0))
	}
	pairs := make([]queryir.Expr, len(kts))
	for i, kt := range kts {
		pairs[i] = queryir.Fn("tuple", queryir.Int(kt.ProjectID), queryir.Str(kt.Transaction))
	}
	return queryir.Fn("in",
		queryir.Fn("tuple", queryir.Col("project_id"), queryir.Col("transaction")),
		queryir.Fn("tuple", pairs...),
	)
}

// AggregateAlias is a caller-registered aggregate field with its own
// conversion rule. When an aggregate term's key matches, the compiler
// hands the term over entirely.
type AggregateAlias interface {
	ConvertAggregate(term search.AggregateTerm) (queryir.Fragment, error)
}

// AggregateAliasFunc adapts a function to AggregateAlias.
type AggregateAliasFunc func(term search.AggregateTerm) (queryir.Fragment, error)

// ConvertAggregate implements AggregateAlias.
func (f AggregateAliasFunc) ConvertAggregate(term search.AggregateTerm) (queryir.Fragment, error) {
	return f(term)
}

package compiler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/eventfilter/internal/compiler"
	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/ir"
	"github.com/roach88/eventfilter/internal/queryir"
	"github.com/roach88/eventfilter/internal/search"
)

func TestConvertAggregate(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		term search.AggregateTerm
		want string
	}{
		{"count", agg("count()", search.OpGreater, search.Int(5)), "count > 5"},
		{"function with column", agg("p95(transaction.duration)", search.OpLess, search.Float(1.5)),
			"p95_transaction_duration < 1.5"},
		{"function with two arguments", agg("percentile(transaction.duration, 0.5)", search.OpGreaterOrEquals, search.Int(100)),
			"percentile_transaction_duration_0_5 >= 100"},
		{"has aggregate", agg("count()", search.OpEquals, search.String("")), "isNull(count) = 1"},
		{"datetime becomes epoch seconds", agg("last_seen()", search.OpGreater, search.Time(ts)),
			"last_seen > 1704067200"},
		{"timestamp keeps iso string", agg("timestamp", search.OpLess, search.Time(ts)),
			"timestamp < '2024-01-01T00:00:00Z'"},
		{"plain field", agg("transaction.duration", search.OpGreater, search.Int(300)),
			"transaction.duration > 300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.compile(t, tt.term)
			assert.Nil(t, res.Where)
			assert.Equal(t, tt.want, render(res.Having))
		})
	}
}

func TestConvertAggregate_Functions(t *testing.T) {
	f := newFixture(t)
	err := f.compileErr(t, agg("fancy()", search.OpGreater, search.Int(1)))
	assert.True(t, compiler.IsInvalidValue(err))
	assert.ErrorContains(t, err, "fancy is not a valid function")

	f.params.Functions = []string{"fancy"}
	res := f.compile(t, agg("fancy()", search.OpGreater, search.Int(1)))
	assert.Equal(t, "fancy > 1", render(res.Having))
}

func TestConvertAggregate_Alias(t *testing.T) {
	f := newFixture(t)
	f.params.Aliases = map[string]fields.AggregateAlias{
		"apdex_score": fields.AggregateAliasFunc(func(term search.AggregateTerm) (queryir.Fragment, error) {
			threshold, ok := term.Value.Raw.(float64)
			if !ok {
				return nil, errors.New("apdex_score takes a number")
			}
			return queryir.Single(queryir.Cond(queryir.Fn("apdex", queryir.Col("duration"), queryir.Int(300)),
				queryir.Op(term.Operator), queryir.Lit(ir.IRFloat(threshold)))), nil
		}),
	}

	err := f.compileErr(t, agg("apdex_score", search.OpGreater, search.String("high")))
	assert.True(t, compiler.IsInvalidValue(err))
	assert.ErrorContains(t, err, "apdex_score takes a number")

	res := f.compile(t, agg("apdex_score", search.OpGreater, search.Float(0.5)))
	assert.Equal(t, "apdex(duration, 300) > 0.5", render(res.Having))
}

func TestConvertAggregate_IllegalOperator(t *testing.T) {
	f := newFixture(t)
	err := f.compileErr(t, agg("count()", search.Operator("=~"), search.Int(1)))
	assert.True(t, compiler.IsIllegalOperator(err))
}

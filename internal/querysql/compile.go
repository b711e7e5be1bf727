package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/eventfilter/internal/ir"
	"github.com/roach88/eventfilter/internal/queryir"
)

// SQLCompiler renders condition trees to parameterized SQL boolean
// expressions for the columnar store.
//
// CRITICAL: All values are parameterized (never interpolated). Literals
// always become ? placeholders, including literals nested in function
// arguments and IN lists.
type SQLCompiler struct {
	// Identity is rendered for a nil tree. Defaults to "1 = 1".
	Identity string
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Identity: "1 = 1"}
}

// Compile converts a condition tree to a SQL boolean expression.
// Returns (sql, params, error) tuple. A nil tree compiles to the
// identity expression with no params. Malformed trees are rejected by
// queryir.Validate before anything is rendered.
//
// Nested operands of a different boolean operator are parenthesized;
// runs of the same operator are flattened:
//
//	And(a, And(b, Or(c, d)))  ->  a AND b AND (c OR d)
func (c *SQLCompiler) Compile(t queryir.Tree) (string, []any, error) {
	if t == nil {
		return c.identity(), nil, nil
	}
	if err := queryir.Validate(t); err != nil {
		return "", nil, fmt.Errorf("invalid condition tree: %w", err)
	}
	var b builder
	if err := b.tree(t); err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.params, nil
}

func (c *SQLCompiler) identity() string {
	if c.Identity == "" {
		return "1 = 1"
	}
	return c.Identity
}

// builder accumulates SQL text and params in one left-to-right pass so
// placeholder order always matches param order.
type builder struct {
	sql    strings.Builder
	params []any
}

func (b *builder) tree(t queryir.Tree) error {
	switch node := t.(type) {
	case queryir.Leaf:
		return b.condition(node.Condition)
	case queryir.And:
		return b.boolean("AND", queryir.Conjuncts(node))
	case queryir.Or:
		return b.boolean("OR", queryir.Disjuncts(node))
	case nil:
		return fmt.Errorf("missing operand")
	default:
		return fmt.Errorf("unsupported tree node: %T", t)
	}
}

func (b *builder) boolean(op string, operands []queryir.Tree) error {
	for i, operand := range operands {
		if i > 0 {
			b.sql.WriteString(" " + op + " ")
		}
		_, isLeaf := operand.(queryir.Leaf)
		if !isLeaf {
			b.sql.WriteByte('(')
		}
		if err := b.tree(operand); err != nil {
			return fmt.Errorf("%s operand %d: %w", op, i, err)
		}
		if !isLeaf {
			b.sql.WriteByte(')')
		}
	}
	return nil
}

func (b *builder) condition(cond queryir.Condition) error {
	if err := b.expr(cond.LHS); err != nil {
		return fmt.Errorf("compile lhs: %w", err)
	}
	switch cond.Op {
	case queryir.OpIsNull, queryir.OpIsNotNull:
		b.sql.WriteString(" " + string(cond.Op))
		return nil
	case queryir.OpEq, queryir.OpNeq, queryir.OpLt, queryir.OpLte, queryir.OpGt, queryir.OpGte,
		queryir.OpLike, queryir.OpNotLike:
		b.sql.WriteString(" " + string(cond.Op) + " ")
		if err := b.expr(cond.RHS); err != nil {
			return fmt.Errorf("compile rhs: %w", err)
		}
		return nil
	case queryir.OpIn, queryir.OpNotIn:
		b.sql.WriteString(" " + string(cond.Op) + " ")
		return b.list(cond.RHS)
	default:
		return fmt.Errorf("unsupported operator: %q", cond.Op)
	}
}

func (b *builder) list(e queryir.Expr) error {
	lit, ok := e.(queryir.Literal)
	if !ok {
		return fmt.Errorf("IN operand must be a list literal, got %T", e)
	}
	arr, ok := lit.Value.(ir.IRArray)
	if !ok {
		return fmt.Errorf("IN operand must be a list literal, got %T", lit.Value)
	}
	if len(arr) == 0 {
		return fmt.Errorf("IN operand must not be empty")
	}
	b.sql.WriteByte('(')
	for i, elem := range arr {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		if err := b.param(elem); err != nil {
			return fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	b.sql.WriteByte(')')
	return nil
}

func (b *builder) expr(e queryir.Expr) error {
	switch expr := e.(type) {
	case queryir.Column:
		b.sql.WriteString(quoteIdent(expr.Name))
		return nil
	case queryir.Func:
		b.sql.WriteString(expr.Name)
		b.sql.WriteByte('(')
		for i, arg := range expr.Args {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			if err := b.expr(arg); err != nil {
				return fmt.Errorf("%s arg %d: %w", expr.Name, i, err)
			}
		}
		b.sql.WriteByte(')')
		return nil
	case queryir.Literal:
		return b.param(expr.Value)
	case nil:
		return fmt.Errorf("missing expression")
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (b *builder) param(v ir.IRValue) error {
	p, err := irValueToParam(v)
	if err != nil {
		return fmt.Errorf("convert value: %w", err)
	}
	b.sql.WriteByte('?')
	b.params = append(b.params, p)
	return nil
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent double-quotes column names that are not plain identifiers,
// such as "tags[browser]" or "transaction.status".
func quoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Arrays and objects are not directly supported as SQL parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}

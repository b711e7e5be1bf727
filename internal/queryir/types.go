package queryir

import (
	"fmt"

	"github.com/roach88/eventfilter/internal/ir"
)

// Expr is one side of a condition.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode()
}

// Column references a stored column or tag by name,
// e.g. "environment" or "tags[browser]".
type Column struct {
	Name string
}

func (Column) exprNode() {}

// Func is a backend function call such as
// positionCaseInsensitive(message, 'foo') or isHandled().
type Func struct {
	Name string
	Args []Expr
}

func (Func) exprNode() {}

// Literal is a constant value. IN / NOT IN operands are ir.IRArray.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

// Col builds a column reference.
func Col(name string) Column { return Column{Name: name} }

// Fn builds a function call expression.
func Fn(name string, args ...Expr) Func {
	if args == nil {
		args = []Expr{}
	}
	return Func{Name: name, Args: args}
}

// Lit wraps an IR value as a literal expression.
func Lit(v ir.IRValue) Literal { return Literal{Value: v} }

// Str builds a string literal.
func Str(s string) Literal { return Literal{Value: ir.IRString(s)} }

// Int builds an integer literal.
func Int(n int64) Literal { return Literal{Value: ir.IRInt(n)} }

// StrList builds an array literal of strings.
func StrList(vals ...string) Literal { return Literal{Value: ir.Strings(vals...)} }

// IntList builds an array literal of integers.
func IntList(vals ...int64) Literal { return Literal{Value: ir.Ints(vals...)} }

// Op is a condition operator.
type Op string

const (
	OpEq        Op = "="
	OpNeq       Op = "!="
	OpLt        Op = "<"
	OpLte       Op = "<="
	OpGt        Op = ">"
	OpGte       Op = ">="
	OpIn        Op = "IN"
	OpNotIn     Op = "NOT IN"
	OpLike      Op = "LIKE"
	OpNotLike   Op = "NOT LIKE"
	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"
)

// Unary reports whether the operator takes no right-hand side.
func (o Op) Unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpNotIn,
		OpLike, OpNotLike, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Condition is a single (lhs, op, rhs) comparison.
// RHS is nil for unary operators.
type Condition struct {
	LHS Expr
	Op  Op
	RHS Expr
}

// Cond builds a binary condition.
func Cond(lhs Expr, op Op, rhs Expr) Condition {
	return Condition{LHS: lhs, Op: op, RHS: rhs}
}

// IsNull builds "lhs IS NULL".
func IsNull(lhs Expr) Condition {
	return Condition{LHS: lhs, Op: OpIsNull}
}

// IsNotNull builds "lhs IS NOT NULL".
func IsNotNull(lhs Expr) Condition {
	return Condition{LHS: lhs, Op: OpIsNotNull}
}

func (c Condition) String() string {
	if c.Op.Unary() {
		return fmt.Sprintf("%s %s", exprString(c.LHS), c.Op)
	}
	return fmt.Sprintf("%s %s %s", exprString(c.LHS), c.Op, exprString(c.RHS))
}

// Fragment is the output of converting one search term: a list of
// conditions to be OR-combined. An empty fragment means no filter.
type Fragment []Condition

// Single builds a one-condition fragment.
func Single(c Condition) Fragment {
	return Fragment{c}
}

// Tree returns the fragment as a tree: nil when empty, a Leaf for one
// condition, otherwise a right-leaning Or chain in list order.
func (f Fragment) Tree() Tree {
	if len(f) == 0 {
		return nil
	}
	var tree Tree = Leaf{Condition: f[len(f)-1]}
	for i := len(f) - 2; i >= 0; i-- {
		tree = Or{Left: Leaf{Condition: f[i]}, Right: tree}
	}
	return tree
}

// Tree is a boolean combination of conditions.
//
// This is a sealed interface - only Leaf, And and Or implement it.
// A nil Tree means "no filter".
type Tree interface {
	treeNode()
}

// Leaf holds a single condition.
type Leaf struct {
	Condition Condition
}

func (Leaf) treeNode() {}

// And is true when both children are true.
type And struct {
	Left  Tree
	Right Tree
}

func (And) treeNode() {}

// Or is true when either child is true.
type Or struct {
	Left  Tree
	Right Tree
}

func (Or) treeNode() {}

// NewLeaf wraps a condition as a tree.
func NewLeaf(c Condition) Tree {
	return Leaf{Condition: c}
}

// NewAnd combines two trees with AND. A nil side is dropped; when both
// are nil the result is nil.
func NewAnd(left, right Tree) Tree {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return And{Left: left, Right: right}
}

// NewOr combines two trees with OR. A nil side is dropped; when both are
// nil the result is nil.
func NewOr(left, right Tree) Tree {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return Or{Left: left, Right: right}
}

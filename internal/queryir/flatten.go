package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/eventfilter/internal/ir"
)

// Conjuncts flattens nested And nodes into their operands, left to right.
// A tree whose root is not And yields a single element; nil yields none.
func Conjuncts(t Tree) []Tree {
	return flattenBy(t, func(t Tree) (Tree, Tree, bool) {
		and, ok := t.(And)
		return and.Left, and.Right, ok
	})
}

// Disjuncts flattens nested Or nodes into their operands, left to right.
func Disjuncts(t Tree) []Tree {
	return flattenBy(t, func(t Tree) (Tree, Tree, bool) {
		or, ok := t.(Or)
		return or.Left, or.Right, ok
	})
}

func flattenBy(t Tree, split func(Tree) (Tree, Tree, bool)) []Tree {
	if t == nil {
		return nil
	}
	left, right, ok := split(t)
	if !ok {
		return []Tree{t}
	}
	return append(flattenBy(left, split), flattenBy(right, split)...)
}

// Leaves returns every condition in the tree in left-to-right order.
func Leaves(t Tree) []Condition {
	var out []Condition
	Walk(t, func(c Condition) {
		out = append(out, c)
	})
	return out
}

// Walk calls fn for each leaf condition in left-to-right order.
func Walk(t Tree, fn func(Condition)) {
	switch node := t.(type) {
	case Leaf:
		fn(node.Condition)
	case And:
		Walk(node.Left, fn)
		Walk(node.Right, fn)
	case Or:
		Walk(node.Left, fn)
		Walk(node.Right, fn)
	}
}

var functionNames = map[Op]string{
	OpEq:        "equals",
	OpNeq:       "notEquals",
	OpLt:        "less",
	OpLte:       "lessOrEquals",
	OpGt:        "greater",
	OpGte:       "greaterOrEquals",
	OpIn:        "in",
	OpNotIn:     "notIn",
	OpLike:      "like",
	OpNotLike:   "notLike",
	OpIsNull:    "isNull",
	OpIsNotNull: "isNotNull",
}

// FunctionForm renders a tree as nested [fn, [args...]] arrays:
//
//	And(a, b)             -> ["and", [A, B]]
//	environment = 'prod'  -> ["equals", ["environment", "'prod'"]]
//	release IN ('1', '2') -> ["in", ["release", ["tuple", ["'1'", "'2'"]]]]
//	environment IS NULL   -> ["isNull", ["environment"]]
//
// Column names are bare strings; string literals are single-quoted. A nil
// tree renders as null.
func FunctionForm(t Tree) (ir.IRValue, error) {
	switch node := t.(type) {
	case nil:
		return ir.IRNull{}, nil
	case Leaf:
		return conditionForm(node.Condition)
	case And:
		return binaryForm("and", node.Left, node.Right)
	case Or:
		return binaryForm("or", node.Left, node.Right)
	default:
		return nil, fmt.Errorf("unsupported tree node: %T", t)
	}
}

func binaryForm(name string, left, right Tree) (ir.IRValue, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("%s: missing operand", name)
	}
	l, err := FunctionForm(left)
	if err != nil {
		return nil, err
	}
	r, err := FunctionForm(right)
	if err != nil {
		return nil, err
	}
	return call(name, l, r), nil
}

func conditionForm(c Condition) (ir.IRValue, error) {
	name, ok := functionNames[c.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %q", c.Op)
	}
	lhs, err := exprForm(c.LHS)
	if err != nil {
		return nil, err
	}
	if c.Op.Unary() {
		return call(name, lhs), nil
	}
	rhs, err := exprForm(c.RHS)
	if err != nil {
		return nil, err
	}
	return call(name, lhs, rhs), nil
}

func exprForm(e Expr) (ir.IRValue, error) {
	switch expr := e.(type) {
	case Column:
		return ir.IRString(expr.Name), nil
	case Func:
		args := make([]ir.IRValue, len(expr.Args))
		for i, arg := range expr.Args {
			v, err := exprForm(arg)
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", expr.Name, i, err)
			}
			args[i] = v
		}
		return call(expr.Name, args...), nil
	case Literal:
		return literalForm(expr.Value), nil
	default:
		return nil, fmt.Errorf("unsupported expression: %T", e)
	}
}

func literalForm(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRString(quote(string(val)))
	case ir.IRArray:
		elems := make([]ir.IRValue, len(val))
		for i, elem := range val {
			elems[i] = literalForm(elem)
		}
		return call("tuple", elems...)
	default:
		return v
	}
}

func call(name string, args ...ir.IRValue) ir.IRArray {
	if args == nil {
		args = []ir.IRValue{}
	}
	return ir.NewIRArray(ir.IRString(name), ir.NewIRArray(args...))
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

func exprString(e Expr) string {
	switch expr := e.(type) {
	case Column:
		return expr.Name
	case Func:
		args := make([]string, len(expr.Args))
		for i, arg := range expr.Args {
			args[i] = exprString(arg)
		}
		return expr.Name + "(" + strings.Join(args, ", ") + ")"
	case Literal:
		return literalString(expr.Value)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", e)
	}
}

func literalString(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return quote(string(val))
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case ir.IRBool:
		return strconv.FormatBool(bool(val))
	case ir.IRNull:
		return "NULL"
	case ir.IRArray:
		elems := make([]string, len(val))
		for i, elem := range val {
			elems[i] = literalString(elem)
		}
		return "(" + strings.Join(elems, ", ") + ")"
	default:
		return fmt.Sprintf("%v", v)
	}
}

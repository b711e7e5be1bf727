package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/eventfilter/internal/ir"
)

// Validate checks that a tree is structurally well formed:
//
//   - And / Or nodes have two non-nil children
//   - every condition has a left-hand side and a known operator
//   - unary operators (IS NULL, IS NOT NULL) have no right-hand side,
//     binary operators have one
//   - IN / NOT IN compare against an array literal
//
// A nil tree is valid and means "no filter". Validate is a pure function.
func Validate(t Tree) error {
	return validateTree(t, "root")
}

func validateTree(t Tree, path string) error {
	switch node := t.(type) {
	case nil:
		if path == "root" {
			return nil
		}
		return fmt.Errorf("%s: missing operand", path)
	case Leaf:
		if err := validateCondition(node.Condition); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	case And:
		return errors.Join(
			validateTree(node.Left, path+".and.left"),
			validateTree(node.Right, path+".and.right"),
		)
	case Or:
		return errors.Join(
			validateTree(node.Left, path+".or.left"),
			validateTree(node.Right, path+".or.right"),
		)
	default:
		return fmt.Errorf("%s: unsupported tree node %T", path, t)
	}
}

func validateCondition(c Condition) error {
	if c.LHS == nil {
		return fmt.Errorf("condition has no left-hand side")
	}
	if !c.Op.Valid() {
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	if c.Op.Unary() {
		if c.RHS != nil {
			return fmt.Errorf("%s takes no right-hand side", c.Op)
		}
		return nil
	}
	if c.RHS == nil {
		return fmt.Errorf("%s requires a right-hand side", c.Op)
	}
	if c.Op == OpIn || c.Op == OpNotIn {
		lit, ok := c.RHS.(Literal)
		if !ok {
			return fmt.Errorf("%s requires a list literal", c.Op)
		}
		if _, ok := lit.Value.(ir.IRArray); !ok {
			return fmt.Errorf("%s requires a list literal", c.Op)
		}
	}
	return nil
}

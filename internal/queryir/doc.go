// Package queryir defines the condition-tree intermediate representation
// produced by the query compiler.
//
// # Overview
//
// A compiled search query is two independent boolean trees: one for
// filtering rows (the where tree) and one for filtering aggregated results
// (the having tree). Both share the same shape:
//
//	Tree      = Leaf(Condition) | And(Tree, Tree) | Or(Tree, Tree)
//	Condition = (Expr, Op, Expr)
//	Expr      = Column | Func | Literal
//
// Tree and Expr are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends (querysql,
// FunctionForm) can switch exhaustively without a default arm doing real
// work.
//
// # Fragments
//
// Converting a single search term yields a Fragment: one or more
// conditions that must be OR-combined. Most fields produce one condition;
// some produce two (for example environment:["", "prod"] yields
// "environment IS NULL" OR "environment = 'prod'"). Fragment.Tree turns the
// list into a right-leaning Or chain.
//
// # Literals
//
// Literal values use ir.IRValue so that every compiled tree has a
// canonical JSON form and a stable fingerprint. Lists for IN / NOT IN are
// ir.IRArray literals.
//
// # Backends
//
// querysql renders a Tree to a parameterised SQL boolean expression.
// FunctionForm renders a Tree to the nested [fn, [args]] arrays used by
// older callers and by the fingerprint.
package queryir

// Package ast defines the uniform AST node spec.md §4.3 describes: one
// struct shape, specialized by reusing the token.Type tag space, instead
// of one Go type per production. This keeps the generator's recursion a
// single switch instead of a large per-type visitor table.
package ast

import "github.com/njs-go/njs/internal/token"

// Node is the single AST node shape. Binary/logical ops use Left/Right;
// unary/update/member use Left; call/new use Left (callee) plus Args;
// assignments carry an Op and a Dest hint used later by the generator to
// pick a destination register without an extra allocation.
type Node struct {
	Tag   token.Type
	Left  *Node
	Right *Node
	Dest  *Node // destination-hint child (assignment LHS, for-in binding, catch param)
	Args  []*Node

	// Payload: exactly one of these is meaningful, selected by Tag.
	Literal       any        // NUMBER/STRING/TRUE/FALSE/NULL/UNDEFINED value
	Name          string     // identifier / property name / label
	Op            token.Type // operator for AST_BINARY/AST_LOGICAL/AST_ASSIGN/AST_UNARY/AST_UPDATE
	Prefix        bool       // AST_UPDATE: ++x vs x++
	Computed      bool       // AST_OPTIONAL_MEMBER: a?.[b] (key in Right) vs a?.b (Name)
	Optional      bool       // AST_CALL: a?.() chaining; optional members use the AST_OPTIONAL_MEMBER tag instead
	Parenthesized bool       // set by parseParenOrArrow; lets parseExponent tell `-a ** b` (illegal) from `(-a) ** b`

	// Body holds a node's statement list (AST_PROGRAM, AST_BLOCK, function
	// bodies, switch cases); Parts holds template/array/object element
	// lists where Args already has another meaning on the same tag space.
	Body  []*Node
	Parts []*Node

	// Ref is filled by the scope resolver's second pass (spec.md §4.4):
	// every AST_IDENTIFIER node ends up with a non-nil Ref. Typed as `any`
	// to avoid an ast<->scope import cycle (scope imports ast); holds a
	// *scope.Variable in practice, recovered via a type assertion at the
	// generator/resolver call sites.
	Ref any

	Line int
}

// New constructs a leaf/operator node with a source line, the common case.
func New(tag token.Type, line int) *Node {
	return &Node{Tag: tag, Line: line}
}

// Walk performs a simple pre-order traversal over a node's structural
// children (Left, Right, Dest, Args, Body, Parts), calling visit on each
// non-nil node reached, including n itself. The generator and the debug
// dumpers in internal/diag use their own recursion and do not call Walk.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	Walk(n.Left, visit)
	Walk(n.Right, visit)
	Walk(n.Dest, visit)
	for _, a := range n.Args {
		Walk(a, visit)
	}
	for _, b := range n.Body {
		Walk(b, visit)
	}
	for _, p := range n.Parts {
		Walk(p, visit)
	}
}

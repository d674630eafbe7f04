// Package rules holds the built-in C# modernization analyzers.
//
// Each rule is a stateless analysis.Analyzer value. Rules only read the
// immutable syntax tree, so the engine runs all of them concurrently on the
// same document.
package rules

import (
	"strings"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// Rule identifiers.
const (
	RuleExpressionBodiedMethod   = "expression-bodied-method"
	RuleExpressionBodiedProperty = "expression-bodied-property"
	RuleNullCoalescing           = "null-coalescing"
)

// All returns the built-in Go rules in their fixed registration order.
func All() []analysis.Analyzer {
	return []analysis.Analyzer{
		ExpressionBodiedMethod,
		ExpressionBodiedProperty,
		NullCoalescing,
	}
}

// singleStatement returns the only statement of a block, or nil when the
// block holds anything else (including comments, which a rewrite would drop)
// or was repaired by the parser.
func singleStatement(block *syntax.Node) *syntax.Node {
	if block == nil || block.Type() != "block" || recovered(block) {
		return nil
	}
	named := block.NamedChildren()
	if len(named) != 1 {
		return nil
	}
	return named[0]
}

// returnedExpression returns the expression of `return expr;`, or nil.
func returnedExpression(stmt *syntax.Node) *syntax.Node {
	if stmt == nil || stmt.Type() != "return_statement" {
		return nil
	}
	named := stmt.NamedChildren()
	if len(named) != 1 {
		return nil
	}
	return named[0]
}

// childOfType returns the first direct child with the given type.
func childOfType(n *syntax.Node, kind string) *syntax.Node {
	for i := 0; i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Type() == kind {
			return c
		}
	}
	return nil
}

// recovered reports whether n contains a token the parser inserted, or text
// it skipped, while recovering from a syntax error.
func recovered(n *syntax.Node) bool {
	if n.IsMissing() || n.Type() == "ERROR" {
		return true
	}
	for i := 0; i < n.ChildCount(); i++ {
		if recovered(n.Child(i)) {
			return true
		}
	}
	return false
}

// unparen strips redundant parentheses around an expression.
func unparen(n *syntax.Node) *syntax.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		named := n.NamedChildren()
		if len(named) != 1 {
			return n
		}
		n = named[0]
	}
	return n
}

// sameText compares two nodes by their source text, ignoring surrounding
// whitespace.
func sameText(tree *syntax.Tree, a, b *syntax.Node) bool {
	return strings.TrimSpace(tree.Text(a)) == strings.TrimSpace(tree.Text(b))
}

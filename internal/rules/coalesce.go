package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// NullCoalescing suggests `a ?? b` for `a != null ? a : b` and
// `a == null ? b : a`.
var NullCoalescing = analysis.NewFunc(RuleNullCoalescing, runNullCoalescing)

func runNullCoalescing(_ context.Context, tree *syntax.Tree, _ *analysis.Context) ([]analysis.Finding, error) {
	var findings []analysis.Finding
	for _, cond := range tree.FindAll("conditional_expression") {
		parts := cond.NamedChildren()
		if len(parts) != 3 {
			continue
		}
		test, whenTrue, whenFalse := unparen(parts[0]), parts[1], parts[2]

		subject, op := nullComparison(tree, test)
		if subject == nil {
			continue
		}

		var fallback *syntax.Node
		switch {
		case op == "!=" && sameText(tree, subject, whenTrue):
			fallback = whenFalse
		case op == "==" && sameText(tree, subject, whenFalse):
			fallback = whenTrue
		default:
			continue
		}

		lhs := strings.TrimSpace(tree.Text(subject))
		rhs := strings.TrimSpace(tree.Text(fallback))
		findings = append(findings, analysis.NewFinding(tree, cond,
			RuleNullCoalescing,
			fmt.Sprintf("null check on %s can use the ?? operator", lhs),
			analysis.Replace(cond, lhs+" ?? "+rhs),
		))
	}
	return findings, nil
}

// nullComparison matches `x == null`, `x != null` and their mirrored forms,
// returning x and the operator.
func nullComparison(tree *syntax.Tree, n *syntax.Node) (*syntax.Node, string) {
	if n == nil || n.Type() != "binary_expression" {
		return nil, ""
	}
	var op string
	switch {
	case n.HasChildOfType("!="):
		op = "!="
	case n.HasChildOfType("=="):
		op = "=="
	default:
		return nil, ""
	}
	operands := n.NamedChildren()
	if len(operands) != 2 {
		return nil, ""
	}
	left, right := unparen(operands[0]), unparen(operands[1])
	switch {
	case isNull(tree, right) && !isNull(tree, left):
		return left, op
	case isNull(tree, left) && !isNull(tree, right):
		return right, op
	}
	return nil, ""
}

func isNull(tree *syntax.Tree, n *syntax.Node) bool {
	return n.Type() == "null_literal" || strings.TrimSpace(tree.Text(n)) == "null"
}

package rules

import (
	"context"
	"fmt"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// ExpressionBodiedMethod suggests `=> expr;` for methods, local functions
// and constructors whose block body is a single return or expression
// statement.
var ExpressionBodiedMethod = analysis.NewFunc(RuleExpressionBodiedMethod, runExpressionBodiedMethod)

// ExpressionBodiedProperty suggests `=> expr;` for get-only properties and
// indexers whose getter is a single return statement.
var ExpressionBodiedProperty = analysis.NewFunc(RuleExpressionBodiedProperty, runExpressionBodiedProperty)

var methodKinds = []string{
	"method_declaration",
	"local_function_statement",
	"constructor_declaration",
	"operator_declaration",
	"conversion_operator_declaration",
}

func runExpressionBodiedMethod(_ context.Context, tree *syntax.Tree, _ *analysis.Context) ([]analysis.Finding, error) {
	var findings []analysis.Finding
	for _, decl := range tree.FindAll(methodKinds...) {
		body := childOfType(decl, "block")
		stmt := singleStatement(body)
		if stmt == nil {
			continue
		}

		var expr *syntax.Node
		switch stmt.Type() {
		case "return_statement":
			expr = returnedExpression(stmt)
		case "expression_statement":
			named := stmt.NamedChildren()
			if len(named) == 1 {
				expr = named[0]
			}
		}
		if expr == nil {
			continue
		}

		findings = append(findings, analysis.NewFinding(tree, decl,
			RuleExpressionBodiedMethod,
			fmt.Sprintf("%s body can be an expression body", memberLabel(tree, decl)),
			analysis.Replace(body, "=> "+tree.Text(expr)+";"),
		))
	}
	return findings, nil
}

func runExpressionBodiedProperty(_ context.Context, tree *syntax.Tree, _ *analysis.Context) ([]analysis.Finding, error) {
	var findings []analysis.Finding
	for _, decl := range tree.FindAll("property_declaration", "indexer_declaration") {
		accessors := childOfType(decl, "accessor_list")
		if accessors == nil {
			continue
		}
		named := accessors.NamedChildren()
		if len(named) != 1 || named[0].Type() != "accessor_declaration" {
			continue
		}
		getter := named[0]
		if !getter.HasChildOfType("get") || getter.HasChildOfType("modifier") || getter.HasChildOfType("attribute_list") {
			continue
		}
		expr := returnedExpression(singleStatement(childOfType(getter, "block")))
		if expr == nil {
			continue
		}

		findings = append(findings, analysis.NewFinding(tree, decl,
			RuleExpressionBodiedProperty,
			fmt.Sprintf("%s getter can be an expression body", memberLabel(tree, decl)),
			analysis.Replace(accessors, "=> "+tree.Text(expr)+";"),
		))
	}
	return findings, nil
}

var memberKinds = map[string]string{
	"method_declaration":              "method",
	"local_function_statement":        "local function",
	"constructor_declaration":         "constructor",
	"operator_declaration":            "operator",
	"conversion_operator_declaration": "conversion operator",
	"property_declaration":            "property",
	"indexer_declaration":             "indexer",
}

// memberLabel names a declaration for messages, e.g. "method Greet".
func memberLabel(tree *syntax.Tree, decl *syntax.Node) string {
	kind := memberKinds[decl.Type()]

	if decl.Type() == "indexer_declaration" || decl.Type() == "operator_declaration" || decl.Type() == "conversion_operator_declaration" {
		return kind
	}
	// The declared name is the last identifier before the parameter list or
	// accessor list.
	var name string
	for _, c := range decl.Children() {
		switch c.Type() {
		case "identifier":
			name = tree.Text(c)
		case "parameter_list", "accessor_list", "block", "arrow_expression_clause":
			if name != "" {
				return kind + " " + name
			}
			return kind
		}
	}
	if name != "" {
		return kind + " " + name
	}
	return kind
}

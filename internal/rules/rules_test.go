package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

func parseCS(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), "Test.cs", "csharp", []byte(src))
	require.NoError(t, err)
	return tree
}

func run(t *testing.T, a analysis.Analyzer, src string) ([]analysis.Finding, *syntax.Tree) {
	t.Helper()
	tree := parseCS(t, src)
	findings, err := a.Analyze(context.Background(), tree, &analysis.Context{Path: "Test.cs", Language: "csharp"})
	require.NoError(t, err)
	return findings, tree
}

// applyEdit returns src with f's edit applied.
func applyEdit(src string, f analysis.Finding) string {
	return src[:f.Edit.StartByte] + f.Edit.NewText + src[f.Edit.EndByte:]
}

func TestAll_FixedOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, a := range All() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{
		RuleExpressionBodiedMethod,
		RuleExpressionBodiedProperty,
		RuleNullCoalescing,
	}, names)
}

// =============================================================================
// expression-bodied-method
// =============================================================================

func TestExpressionBodiedMethod_SingleReturn(t *testing.T) {
	t.Parallel()

	src := `class C
{
    public int Twice(int x)
    {
        return x * 2;
    }
}
`
	findings, _ := run(t, ExpressionBodiedMethod, src)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, RuleExpressionBodiedMethod, f.Rule)
	assert.Equal(t, "method Twice body can be an expression body", f.Message)
	assert.Equal(t, 3, f.Location.StartLine)
	assert.Equal(t, "=> x * 2;", f.Edit.NewText)
	assert.Contains(t, applyEdit(src, f), "public int Twice(int x)\n    => x * 2;")
}

func TestExpressionBodiedMethod_VoidExpressionStatement(t *testing.T) {
	t.Parallel()

	src := `class C { void Log(string m) { System.Console.WriteLine(m); } }`
	findings, _ := run(t, ExpressionBodiedMethod, src)
	require.Len(t, findings, 1)
	assert.Equal(t, "=> System.Console.WriteLine(m);", findings[0].Edit.NewText)
}

func TestExpressionBodiedMethod_Constructor(t *testing.T) {
	t.Parallel()

	src := `class C { int v; public C(int x) { v = x; } }`
	findings, _ := run(t, ExpressionBodiedMethod, src)
	require.Len(t, findings, 1)
	assert.Equal(t, "constructor C body can be an expression body", findings[0].Message)
}

func TestExpressionBodiedMethod_Skips(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"multiple statements": `class C { int M() { var x = 1; return x; } }`,
		"bare return":         `class C { void M() { return; } }`,
		"already expression":  `class C { int M() => 1; }`,
		"comment in body":     `class C { int M() { // keep me
            return 1; } }`,
		"empty body":        `class C { void M() { } }`,
		"abstract":          `abstract class C { public abstract int M(); }`,
		"missing semicolon": `class C { int M() { return 1 } }`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			findings, _ := run(t, ExpressionBodiedMethod, src)
			assert.Empty(t, findings)
		})
	}
}

func TestRecovered(t *testing.T) {
	t.Parallel()

	clean := parseCS(t, `class C { int M() { return 1; } }`)
	assert.False(t, recovered(clean.Root()))
	assert.NotNil(t, singleStatement(childOfType(clean.FindAll("method_declaration")[0], "block")))

	broken := parseCS(t, `class C { int M() { return 1 } }`)
	assert.True(t, broken.HasError())
	for _, decl := range broken.FindAll("method_declaration") {
		assert.Nil(t, singleStatement(childOfType(decl, "block")))
	}
}

// =============================================================================
// expression-bodied-property
// =============================================================================

func TestExpressionBodiedProperty_GetOnly(t *testing.T) {
	t.Parallel()

	src := `class C { int x; public int X { get { return x; } } }`
	findings, _ := run(t, ExpressionBodiedProperty, src)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, RuleExpressionBodiedProperty, f.Rule)
	assert.Equal(t, "property X getter can be an expression body", f.Message)
	assert.Equal(t, `class C { int x; public int X => x; }`, applyEdit(src, f))
}

func TestExpressionBodiedProperty_Skips(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"auto property":      `class C { public int X { get; set; } }`,
		"get and set":        `class C { int x; public int X { get { return x; } set { x = value; } } }`,
		"private getter":     `class C { int x; public int X { private get { return x; } } }`,
		"multi-statement":    `class C { int x; public int X { get { var y = x; return y; } } }`,
		"already expression": `class C { int x; public int X => x; }`,
		"missing semicolon":  `class C { int x; public int X { get { return x } } }`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			findings, _ := run(t, ExpressionBodiedProperty, src)
			assert.Empty(t, findings)
		})
	}
}

// =============================================================================
// null-coalescing
// =============================================================================

func TestNullCoalescing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"not-equal", `a != null ? a : b`, `a ?? b`},
		{"equal", `a == null ? b : a`, `a ?? b`},
		{"mirrored", `null != a ? a : "none"`, `a ?? "none"`},
		{"parenthesized", `(a != null) ? a : b`, `a ?? b`},
		{"member access", `p.Name != null ? p.Name : ""`, `p.Name ?? ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := "class C { object M(object a, object b, P p) { return " + tt.expr + "; } }"
			findings, _ := run(t, NullCoalescing, src)
			require.Len(t, findings, 1)
			assert.Equal(t, RuleNullCoalescing, findings[0].Rule)
			assert.Equal(t, tt.want, findings[0].Edit.NewText)
		})
	}
}

func TestNullCoalescing_Skips(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"different subject": `a != null ? b : c`,
		"inverted branches": `a != null ? b : a`,
		"not a null test":   `a == b ? a : b`,
		"both null":         `null == null ? a : b`,
	}
	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			src := "class C { object M(object a, object b, object c) { return " + expr + "; } }"
			findings, _ := run(t, NullCoalescing, src)
			assert.Empty(t, findings)
		})
	}
}

package runtime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

const csTestSource = `class Greeter
{
    public string Greet(string name)
    {
        return "Hello " + name;
    }
}
`

func parseCS(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), "Greeter.cs", "csharp", []byte(src))
	require.NoError(t, err)
	return tree
}

func testContext() *analysis.Context {
	return &analysis.Context{Unit: "App", UnitDir: "src/App", Path: "Greeter.cs", Language: "csharp"}
}

// --- Host function tests (via RunSource) ---

func TestRunSource_FindAndReport(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	script := `
for _, ret := range find("return_statement") {
    report(ret, "found a return")
}
`
	findings, err := rt.RunSource(context.Background(), script, parseCS(t, csTestSource), testContext())
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "inline", f.Rule)
	assert.Equal(t, "found a return", f.Message)
	assert.Equal(t, "Greeter.cs", f.Location.Path)
	assert.Equal(t, 5, f.Location.StartLine)
	assert.Equal(t, 9, f.Location.StartCol)
	assert.True(t, f.Edit.IsZero())
}

func TestRunSource_ReportWithReplacement(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	tree := parseCS(t, csTestSource)
	script := `
for _, b := range find("binary_expression") {
    report(b["id"], "use concat", "string.Concat(greeting, name)")
}
`
	findings, err := rt.RunSource(context.Background(), script, tree, testContext())
	require.NoError(t, err)
	require.Len(t, findings, 1)

	edit := findings[0].Edit
	assert.Equal(t, "string.Concat(greeting, name)", edit.NewText)
	assert.Equal(t, `"Hello " + name`, string(tree.Source()[edit.StartByte:edit.EndByte]))
}

func TestRunSource_NodeMaps(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	script := `
methods := find("method_declaration")
assert(len(methods) == 1, 'expected 1 method, got {len(methods)}')
m := methods[0]
assert(m["type"] == "method_declaration", "wrong type")
assert(m["line"] == 3, 'expected line 3, got {m["line"]}')
assert(m["col"] == 5, 'expected col 5, got {m["col"]}')
assert(m["named"] == true, "expected named node")
assert(m["missing"] == false, "method was not inserted by recovery")

cls := parent(parent(m))
assert(cls["type"] == "class_declaration", 'expected class_declaration, got {cls["type"]}')

ret := find("return_statement")[0]
owner := ancestor(ret, "method_declaration")
assert(owner["id"] == m["id"], "ancestor should be the method")
assert(ancestor(ret, "namespace_declaration") == nil, "no namespace expected")

kinds := []
for _, c := range children(m) {
    kinds.append(c["type"])
}
assert(len(kinds) > 0, "method has named children")
`
	_, err := rt.RunSource(context.Background(), script, parseCS(t, csTestSource), testContext())
	require.NoError(t, err)
}

func TestRunSource_ContextGlobals(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	script := `
assert(path == "Greeter.cs", 'unexpected path {path}')
assert(unit == "App", 'unexpected unit {unit}')
assert(language == "csharp", 'unexpected language {language}')
assert(rule == "inline", 'unexpected rule {rule}')
`
	_, err := rt.RunSource(context.Background(), script, parseCS(t, csTestSource), testContext())
	require.NoError(t, err)
}

func TestRunSource_BadNodeID(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `report(100000, "nope")`, parseCS(t, csTestSource), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no node with id")
}

func TestRunSource_SyntaxError(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `for {{{`, parseCS(t, csTestSource), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: script <inline>")
}

func TestRunSource_NoTree(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	findings, err := rt.RunSource(context.Background(), `x := 1 + 2
assert(x == 3, 'expected 3')`, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRunSource_LogUsesContextLogger(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	actx := testContext()
	actx.Logger = logger

	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `log.Warn("careful")`, parseCS(t, csTestSource), actx)
	require.NoError(t, err)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "careful", entry.Message)
	assert.Equal(t, "inline", entry.Data["rule"])
}

// --- Script loading tests ---

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_Missing(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(t.TempDir())
	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"rules/demo.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("rules/demo.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/rules/demo.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestRuleName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "string-interpolation", RuleName("rules/string_interpolation.risor"))
	assert.Equal(t, "nameof-argument", RuleName(filepath.Join("x", "rules", "nameof_argument.risor")))
	assert.Equal(t, "plain", RuleName("plain"))
}

func TestRulePaths_FromFS(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"shared.risor":    &fstest.MapFile{Data: []byte(``)},
		"rules/b.risor":   &fstest.MapFile{Data: []byte(``)},
		"rules/a.risor":   &fstest.MapFile{Data: []byte(``)},
		"rules/notes.txt": &fstest.MapFile{Data: []byte(``)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	paths, err := rt.RulePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"rules/a.risor", "rules/b.risor"}, paths)
}

func TestAnalyzers_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, RulesDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RulesDir, "flag_returns.risor"), []byte(`
for _, ret := range find("return_statement") {
    report(ret, "return in " + path)
}
`), 0644))

	rt := NewRuntime(dir)
	analyzers, err := rt.Analyzers()
	require.NoError(t, err)
	require.Len(t, analyzers, 1)
	assert.Equal(t, "flag-returns", analyzers[0].Name())

	findings, err := analyzers[0].Analyze(context.Background(), parseCS(t, csTestSource), testContext())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "flag-returns", findings[0].Rule)
	assert.Equal(t, "return in Greeter.cs", findings[0].Message)
}

func TestScriptAnalyzer_ConcurrentTrees(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"rules/count.risor": &fstest.MapFile{Data: []byte(`
for _, m := range find("method_declaration") {
    report(m, "method")
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	a, err := rt.NewAnalyzer("rules/count.risor")
	require.NoError(t, err)
	assert.Equal(t, "rules/count.risor", a.Path())

	tree := parseCS(t, csTestSource)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			findings, err := a.Analyze(context.Background(), tree, testContext())
			assert.NoError(t, err)
			assert.Len(t, findings, 1)
		}()
	}
	wg.Wait()
}

func TestNewAnalyzer_SyntaxErrorAtLoad(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"rules/broken.risor": &fstest.MapFile{Data: []byte(`for {{{`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	_, err := rt.NewAnalyzer("rules/broken.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: script rules/broken.risor")

	_, err = rt.Analyzers()
	require.Error(t, err)
}

func TestScriptAnalyzer_ReusesCompiledCode(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"shared.risor": &fstest.MapFile{Data: []byte(`
func methods() {
	return find("method_declaration")
}
`)},
		"rules/methods.risor": &fstest.MapFile{Data: []byte(`
import shared
for _, m := range shared.methods() {
    report(m, "method in " + path)
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	a, err := rt.NewAnalyzer("rules/methods.risor")
	require.NoError(t, err)
	code := a.code

	twoMethods := parseCS(t, `class C { void A() {} void B() {} }`)
	for i, tc := range []struct {
		tree *syntax.Tree
		path string
		want int
	}{
		{parseCS(t, csTestSource), "Greeter.cs", 1},
		{twoMethods, "C.cs", 2},
		{parseCS(t, csTestSource), "Other.cs", 1},
	} {
		actx := testContext()
		actx.Path = tc.path
		findings, err := a.Analyze(context.Background(), tc.tree, actx)
		require.NoError(t, err, "run %d", i)
		require.Len(t, findings, tc.want, "run %d", i)
		assert.Equal(t, "method in "+tc.path, findings[0].Message)
	}
	assert.Same(t, code, a.code)
}

// --- Importer wiring tests ---

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor",
	// so the file must be at the flat path "lib_helpers.risor" in the FS.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	_, err := rt.RunSource(context.Background(), script, nil, nil)
	require.NoError(t, err)
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0644))

	rt := NewRuntime(dir)

	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	_, err := rt.RunSource(context.Background(), script, nil, nil)
	require.NoError(t, err)
}

func TestImport_HostFunctionsAvailableInImportedModules(t *testing.T) {
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func returns() {
	return find("return_statement")
}
`)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import helper
for _, r := range helper.returns() {
    report(r, "via helper")
}
`
	findings, err := rt.RunSource(context.Background(), script, parseCS(t, csTestSource), testContext())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "via helper", findings[0].Message)
}

// Package runtime embeds a Risor VM and exposes syntax trees to scripted
// modernization rules. Each rule script becomes an analysis.Analyzer.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// RulesDir is the directory, relative to the script root, that holds one
// .risor file per scripted rule. Other .risor files at the root are shared
// modules that rules may import.
const RulesDir = "rules"

// Runtime loads rule scripts and evaluates them against syntax trees.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     logrus.FieldLogger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l logrus.FieldLogger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that loads scripts from scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// scriptGlobals names every global buildGlobals can set. Scripts are compiled
// against the full set; globals a session does not provide evaluate to nil.
var scriptGlobals = []string{
	"rule", "log",
	"path", "unit", "language",
	"find", "children", "parent", "ancestor", "report",
}

// RunSource executes Risor source against tree and returns what it reported
// under the rule name "inline". tree may be nil for scripts that do not touch
// the tree host functions.
func (r *Runtime) RunSource(ctx context.Context, source string, tree *syntax.Tree, actx *analysis.Context) ([]analysis.Finding, error) {
	code, err := r.compile(ctx, source, "<inline>")
	if err != nil {
		return nil, err
	}
	return r.run(ctx, code, "<inline>", r.buildImporter(), newSession("inline", tree, actx))
}

// compile parses and compiles source once so it can be run against any
// number of sessions.
func (r *Runtime) compile(ctx context.Context, source, label string) (*compiler.Code, error) {
	prog, err := parser.Parse(ctx, source, parser.WithFile(label))
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	names := make(map[string]any, len(scriptGlobals))
	for _, name := range scriptGlobals {
		names[name] = nil
	}
	cfg := risor.NewConfig(risor.WithGlobals(names), risor.WithFilename(label))
	code, err := compiler.Compile(prog, cfg.CompilerOpts()...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return code, nil
}

func (r *Runtime) run(ctx context.Context, code *compiler.Code, label string, imp importer.Importer, s *session) ([]analysis.Finding, error) {
	opts := []risor.Option{risor.WithGlobals(r.buildGlobals(s))}

	// Wire importer so Risor import statements resolve correctly.
	if imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.EvalCode(ctx, code, opts...); err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return s.results(), nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured. Importers cache
// compiled modules and are safe for concurrent use.
func (r *Runtime) buildImporter() importer.Importer {
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: scriptGlobals,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: scriptGlobals,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(p string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are slash-separated and never rooted.
		fsPath := strings.TrimPrefix(filepath.ToSlash(p), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := p
	if !filepath.IsAbs(p) {
		fullPath = filepath.Join(r.scriptsDir, p)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// RulePaths lists the rule scripts under RulesDir, sorted by path.
func (r *Runtime) RulePaths() ([]string, error) {
	var (
		paths []string
		err   error
	)
	if r.fsys != nil {
		paths, err = fs.Glob(r.fsys, path.Join(RulesDir, "*.risor"))
	} else {
		var matches []string
		matches, err = filepath.Glob(filepath.Join(r.scriptsDir, RulesDir, "*.risor"))
		for _, m := range matches {
			rel, relErr := filepath.Rel(r.scriptsDir, m)
			if relErr != nil {
				return nil, fmt.Errorf("runtime: listing rules: %w", relErr)
			}
			paths = append(paths, rel)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("runtime: listing rules: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Analyzers loads every rule script and returns one analyzer per script,
// in RulePaths order.
func (r *Runtime) Analyzers() ([]analysis.Analyzer, error) {
	paths, err := r.RulePaths()
	if err != nil {
		return nil, err
	}
	out := make([]analysis.Analyzer, 0, len(paths))
	for _, p := range paths {
		a, err := r.NewAnalyzer(p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// NewAnalyzer loads and compiles the script at p. Every Analyze call runs
// the compiled code in a fresh VM; syntax errors surface here.
func (r *Runtime) NewAnalyzer(p string) (*ScriptAnalyzer, error) {
	src, err := r.LoadScript(p)
	if err != nil {
		return nil, err
	}
	code, err := r.compile(context.Background(), src, p)
	if err != nil {
		return nil, err
	}
	return &ScriptAnalyzer{
		name:     RuleName(p),
		path:     p,
		code:     code,
		importer: r.buildImporter(),
		rt:       r,
	}, nil
}

// RuleName derives a rule name from a script path:
// "rules/string_interpolation.risor" becomes "string-interpolation".
func RuleName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, ".risor")
	return strings.ReplaceAll(base, "_", "-")
}

// ScriptAnalyzer runs one Risor rule script.
type ScriptAnalyzer struct {
	name     string
	path     string
	code     *compiler.Code
	importer importer.Importer
	rt       *Runtime
}

func (a *ScriptAnalyzer) Name() string { return a.name }

// Path returns the script path the analyzer was loaded from.
func (a *ScriptAnalyzer) Path() string { return a.path }

func (a *ScriptAnalyzer) Analyze(ctx context.Context, tree *syntax.Tree, actx *analysis.Context) ([]analysis.Finding, error) {
	return a.rt.run(ctx, a.code, a.path, a.importer, newSession(a.name, tree, actx))
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(s *session) map[string]any {
	logger := r.logger
	if s.actx != nil && s.actx.Logger != nil {
		logger = s.actx.Logger
	}
	globals := map[string]any{
		"rule": s.rule,
		"log":  mustProxy(&logObject{log: logger.WithField("rule", s.rule)}),
	}
	if s.actx != nil {
		globals["path"] = s.actx.Path
		globals["unit"] = s.actx.Unit
		globals["language"] = s.actx.Language
	}
	if s.tree != nil {
		globals["find"] = makeFindFn(s)
		globals["children"] = makeChildrenFn(s)
		globals["parent"] = makeParentFn(s)
		globals["ancestor"] = makeAncestorFn(s)
		globals["report"] = makeReportFn(s)
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

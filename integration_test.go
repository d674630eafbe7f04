package refit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/refit/internal/store"
	"github.com/jward/refit/internal/workspace"
)

// findModuleRoot walks up from cwd to find go.mod, returning the repo root.
func findModuleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find module root")
		}
		dir = parent
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func loadWorkspace(t *testing.T, files map[string]string) *workspace.Snapshot {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	sess, err := workspace.Load(context.Background(), dir, workspace.WithoutGit(), workspace.WithLogger(quietLogger()))
	require.NoError(t, err)
	return sess.Snapshot()
}

func TestIntegration_DiskScriptsMatchEmbedded(t *testing.T) {
	t.Parallel()

	embedded, err := DefaultRegistry(quietLogger())
	require.NoError(t, err)
	disk, err := LoadRegistry(filepath.Join(findModuleRoot(t), "scripts"), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, embedded.Names(), disk.Names())
}

func TestIntegration_LoadAnalyzeSave(t *testing.T) {
	t.Parallel()

	snap := loadWorkspace(t, map[string]string{
		"src/Api/Api.csproj": "<Project />\n",
		"src/Api/Controller.cs": `class Controller
{
    string Get(string id)
    {
        return id != null ? id : "none";
    }
}
`,
		"src/Api/Controller.Designer.cs": `class Generated { int X() { return 1; } }`,
		"src/Core/Core.csproj":           "<Project />\n",
		"src/Core/Model.cs":              `class Model { int v; public int V { get { return v; } } }`,
	})

	reg, err := DefaultRegistry(quietLogger())
	require.NoError(t, err)
	e := New(reg, WithLogger(quietLogger()))
	require.Equal(t, 2, e.MaxProgress(snap))

	started := time.Now()
	res, err := e.Analyze(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Documents)

	s, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	rows := make([]store.Finding, len(res.Findings))
	for i, f := range res.Findings {
		rows[i] = store.Finding{
			Rule:      f.Rule,
			Message:   f.Message,
			Path:      f.Location.Path,
			StartLine: f.Location.StartLine,
			StartCol:  f.Location.StartCol,
			EndLine:   f.Location.EndLine,
			EndCol:    f.Location.EndCol,
		}
	}
	run := &store.Run{
		Root:       "/ws",
		Language:   e.Filter().Language,
		Policy:     e.Policy().String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Documents:  res.Documents,
		Expected:   2,
		Status:     store.StatusOK,
	}
	require.NoError(t, s.SaveRun(run, rows))

	counts, err := s.RuleCounts(run.ID)
	require.NoError(t, err)
	got := make(map[string]int)
	for _, c := range counts {
		got[c.Rule] = c.Count
	}
	assert.Equal(t, map[string]int{
		"expression-bodied-method":   1,
		"expression-bodied-property": 1,
		"null-coalescing":            1,
	}, got)

	saved, err := s.FindingsByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "src/Api/Controller.cs", saved[0].Path)
	assert.Equal(t, "src/Core/Model.cs", saved[2].Path)
}

func TestIntegration_ScriptFailureFromDisk(t *testing.T) {
	t.Parallel()

	scripts := t.TempDir()
	writeFiles(t, scripts, map[string]string{
		"rules/always_fails.risor": `assert(false, "always fails")` + "\n",
	})
	reg, err := LoadRegistry(scripts, quietLogger())
	require.NoError(t, err)
	require.Contains(t, reg.Names(), "always-fails")

	snap := loadWorkspace(t, map[string]string{
		"App/App.csproj": "<Project />\n",
		"App/A.cs":       `class A { int X() { return 1; } }`,
		"App/B.cs":       `class B { int Y() { return 2; } }`,
	})

	_, err = New(reg, WithLogger(quietLogger())).Analyze(context.Background(), snap, nil)
	var aerr *AnalyzerError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "always-fails", aerr.Analyzer)
	assert.Equal(t, "App/A.cs", aerr.Path)

	res, err := New(reg, WithFailurePolicy(ContinueOnFailure), WithLogger(quietLogger())).
		Analyze(context.Background(), snap, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Len(t, res.Degraded, 2)
	assert.Len(t, res.Findings, 2)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jward/refit"
	"github.com/jward/refit/internal/config"
	"github.com/jward/refit/internal/store"
	"github.com/jward/refit/internal/workspace"
)

var (
	flagLanguage        string
	flagWorkers         int
	flagContinueOnError bool
	flagNoSave          bool
	flagScriptsDir      string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze a workspace and report modernization findings",
	Long:  "Loads the workspace, runs every registered analyzer on each eligible document, records the run in the database and prints the findings.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

var countCmd = &cobra.Command{
	Use:   "count [path]",
	Short: "Print how many documents a scan would analyze",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

func init() {
	for _, cmd := range []*cobra.Command{scanCmd, countCmd} {
		cmd.Flags().StringVar(&flagLanguage, "language", "", "unit language to analyze (default: csharp)")
	}
	scanCmd.Flags().IntVar(&flagWorkers, "workers", 0, "analyzer worker count (default: one per CPU)")
	scanCmd.Flags().BoolVar(&flagContinueOnError, "continue-on-error", false, "record analyzer failures and keep going instead of aborting")
	scanCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "do not record the run in the database")
	scanCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripted rules from disk path instead of embedded")
}

// scanSetup is everything a scan or count needs after flags and config are
// merged.
type scanSetup struct {
	targetDir string
	repoRoot  string
	cfg       *config.Config
	closer    io.Closer
	session   *workspace.Session
}

func setupScan(ctx context.Context, cmd *cobra.Command, args []string) (*scanSetup, error) {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return nil, err
	}
	repoRoot := findRepoRoot(targetDir)

	cfg, closer, err := loadConfig(repoRoot)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("language") {
		cfg.Language = flagLanguage
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if cmd.Flags().Changed("continue-on-error") {
		cfg.ContinueOnError = flagContinueOnError
	}
	if cmd.Flags().Changed("scripts-dir") {
		cfg.Scripts = flagScriptsDir
	}
	if err := cfg.Validate(); err != nil {
		closer.Close()
		return nil, err
	}

	sess, err := workspace.Load(ctx, targetDir, workspace.WithLogger(logrus.StandardLogger()))
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return &scanSetup{
		targetDir: targetDir,
		repoRoot:  repoRoot,
		cfg:       cfg,
		closer:    closer,
		session:   sess,
	}, nil
}

func (s *scanSetup) engine() (*refit.Engine, error) {
	registry, err := refit.LoadRegistry(s.cfg.Scripts, logrus.StandardLogger())
	if err != nil {
		return nil, err
	}
	policy := refit.FailFast
	if s.cfg.ContinueOnError {
		policy = refit.ContinueOnFailure
	}
	return refit.New(registry,
		refit.WithLanguage(s.cfg.Language),
		refit.WithWorkers(s.cfg.Workers),
		refit.WithFailurePolicy(policy),
		refit.WithLogger(logrus.StandardLogger()),
	), nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	setup, err := setupScan(ctx, cmd, args)
	if err != nil {
		return outputError("scan", err)
	}
	defer setup.closer.Close()

	engine, err := setup.engine()
	if err != nil {
		return outputError("scan", err)
	}

	snap := setup.session.Snapshot()
	expected := engine.MaxProgress(snap)
	progress := newProgressLine(os.Stderr, expected)

	started := time.Now()
	result, runErr := engine.Analyze(ctx, snap, progress.update)
	finished := time.Now()
	progress.finish()

	run := &store.Run{
		Root:       setup.targetDir,
		Language:   setup.cfg.Language,
		Policy:     engine.Policy().String(),
		StartedAt:  started,
		FinishedAt: finished,
		Documents:  result.Documents,
		Expected:   expected,
		Findings:   len(result.Findings),
		Degraded:   len(result.Degraded),
		Status:     store.StatusOK,
	}
	if runErr != nil {
		run.Status = store.StatusAborted
		run.Error = runErr.Error()
	}

	if !flagNoSave {
		if err := saveRun(resolveDBPath(setup.repoRoot, setup.cfg), run, result); err != nil {
			return outputError("scan", err)
		}
	}

	report := CLIScanReport{
		Run:      toCLIRun(run),
		Findings: toCLIFindings(result.Findings),
		Degraded: toCLIDegraded(result.Degraded),
	}
	if runErr != nil {
		// The partial report is still printed so findings gathered before the
		// abort are not lost.
		if err := outputResult(CLIResult{Command: "scan", Results: report, Error: runErr.Error()}); err != nil {
			return err
		}
		errorHandled = true
		return runErr
	}
	return outputResult(CLIResult{Command: "scan", Results: report})
}

func saveRun(dbPath string, run *store.Run, result *refit.Result) error {
	s, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.SaveRun(run, toStoreFindings(result.Findings)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"run": run.ID, "db": dbPath}).Debug("run saved")
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	setup, err := setupScan(ctx, cmd, args)
	if err != nil {
		return outputError("count", err)
	}
	defer setup.closer.Close()

	snap := setup.session.Snapshot()
	engine := refit.New(nil, refit.WithLanguage(setup.cfg.Language))
	return outputResult(CLIResult{Command: "count", Results: CLICount{
		Root:      setup.targetDir,
		Language:  setup.cfg.Language,
		Units:     len(snap.Units()),
		Documents: snap.DocumentCount(),
		Eligible:  engine.MaxProgress(snap),
	}})
}

// progressLine rewrites a single "analyzing n/total" line on a terminal. It
// does nothing when w is not a terminal, so piped output stays clean.
type progressLine struct {
	w     io.Writer
	total int
	live  bool
}

func newProgressLine(f *os.File, total int) *progressLine {
	return &progressLine{w: f, total: total, live: isTerminal(f)}
}

func (p *progressLine) update(done int) {
	if !p.live {
		return
	}
	fmt.Fprintf(p.w, "\ranalyzing %d/%d documents", done, p.total)
}

func (p *progressLine) finish() {
	if !p.live {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/refit"
	"github.com/jward/refit/internal/runtime"
)

var flagLimit int

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered analyzers in run order",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List recorded runs, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run and its findings",
	Long:  "Shows one recorded run. The run ID may be abbreviated to any unique prefix.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rulesCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripted rules from disk path instead of embedded")
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of runs to list")
}

func runRules(cmd *cobra.Command, args []string) error {
	registry, err := refit.LoadRegistry(flagScriptsDir, logrus.StandardLogger())
	if err != nil {
		return outputError("rules", err)
	}
	var out []CLIRule
	for i, a := range registry.Analyzers() {
		kind := "builtin"
		if _, ok := a.(*runtime.ScriptAnalyzer); ok {
			kind = "script"
		}
		out = append(out, CLIRule{Index: i, Name: a.Name(), Kind: kind})
	}
	return outputResult(CLIResult{Command: "rules", Results: out})
}

func runHistory(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("history", err)
	}
	repoRoot := findRepoRoot(targetDir)
	cfg, closer, err := loadConfig(repoRoot)
	if err != nil {
		return outputError("history", err)
	}
	defer closer.Close()

	s, err := openExistingStore(resolveDBPath(repoRoot, cfg))
	if err != nil {
		return outputError("history", err)
	}
	defer s.Close()

	runs, err := s.Runs(flagLimit)
	if err != nil {
		return outputError("history", err)
	}
	out := make([]CLIRun, len(runs))
	for i, r := range runs {
		out[i] = toCLIRun(r)
	}
	return outputResult(CLIResult{Command: "history", Results: out})
}

func runShow(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(nil)
	if err != nil {
		return outputError("show", err)
	}
	repoRoot := findRepoRoot(targetDir)
	cfg, closer, err := loadConfig(repoRoot)
	if err != nil {
		return outputError("show", err)
	}
	defer closer.Close()

	s, err := openExistingStore(resolveDBPath(repoRoot, cfg))
	if err != nil {
		return outputError("show", err)
	}
	defer s.Close()

	run, err := s.RunByPrefix(args[0])
	if err != nil {
		return outputError("show", err)
	}
	if run == nil {
		return outputError("show", fmt.Errorf("run not found: %s", args[0]))
	}

	findings, err := s.FindingsByRun(run.ID)
	if err != nil {
		return outputError("show", err)
	}
	counts, err := s.RuleCounts(run.ID)
	if err != nil {
		return outputError("show", err)
	}
	rules := make([]CLIRuleCount, len(counts))
	for i, c := range counts {
		rules[i] = CLIRuleCount{Rule: c.Rule, Count: c.Count}
	}
	return outputResult(CLIResult{Command: "show", Results: CLIRunDetail{
		Run:      toCLIRun(run),
		Rules:    rules,
		Findings: storeFindingsToCLI(findings),
	}})
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/vmihailenco/msgpack/v5"
)

var validFormats = []string{"json", "text", "msgpack"}

// validateFormat checks the --format value.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}

var (
	ruleColor     = color.New(color.FgCyan)
	locationColor = color.New(color.Bold)
	editColor     = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed, color.Bold)
)

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, os.Stderr, flagFormat, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In json and msgpack mode the error is written
// to stdout as a CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		errorColor.Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	_ = writeResult(os.Stdout, os.Stderr, flagFormat, CLIResult{Command: command, Error: err.Error()})
	return err
}

func writeResult(stdout, stderr io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		if err := formatText(stdout, result.Results); err != nil {
			return err
		}
		if result.Error != "" {
			errorColor.Fprint(stderr, "Error: ")
			fmt.Fprintln(stderr, result.Error)
		}
		return nil
	case "msgpack":
		return msgpack.NewEncoder(stdout).Encode(result)
	default:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func formatText(w io.Writer, results any) error {
	switch r := results.(type) {
	case CLIScanReport:
		formatScanText(w, r)
	case CLIRunDetail:
		formatRunDetailText(w, r)
	case []CLIRun:
		formatRunsText(w, r)
	case []CLIRule:
		formatRulesText(w, r)
	case CLICount:
		fmt.Fprintf(w, "%d\n", r.Eligible)
	case nil:
	default:
		return fmt.Errorf("no text format for %T", results)
	}
	return nil
}

// formatFindingsText writes one "file:line:col rule message" line per
// finding, followed by its replacement text when it has one.
func formatFindingsText(w io.Writer, findings []CLIFinding) {
	for _, f := range findings {
		locationColor.Fprintf(w, "%s:%d:%d", f.File, f.StartLine, f.StartCol)
		fmt.Fprint(w, " ")
		ruleColor.Fprintf(w, "[%s]", f.Rule)
		fmt.Fprintf(w, " %s\n", f.Message)
		if f.Edit != nil {
			fmt.Fprint(w, "    ")
			editColor.Fprintln(w, f.Edit.NewText)
		}
	}
}

func formatScanText(w io.Writer, r CLIScanReport) {
	formatFindingsText(w, r.Findings)
	for _, d := range r.Degraded {
		warnColor.Fprintf(w, "degraded: %s (%s)\n", d.File, d.Unit)
		for _, e := range d.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	if len(r.Findings) > 0 || len(r.Degraded) > 0 {
		fmt.Fprintln(w)
	}
	formatRunSummaryText(w, r.Run)
}

func formatRunSummaryText(w io.Writer, r CLIRun) {
	fmt.Fprintf(w, "%d findings in %d/%d documents (%d degraded, %s, %dms)\n",
		r.Findings, r.Documents, r.Expected, r.Degraded, r.Status, r.DurationMS)
	if r.ID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.ID)
	}
}

func formatRunDetailText(w io.Writer, d CLIRunDetail) {
	fmt.Fprintf(w, "Run: %s\n", d.Run.ID)
	fmt.Fprintf(w, "Root: %s\n", d.Run.Root)
	fmt.Fprintf(w, "Started: %s\n", d.Run.StartedAt)
	fmt.Fprintf(w, "Status: %s\n", d.Run.Status)
	if d.Run.Error != "" {
		errorColor.Fprintf(w, "Error: %s\n", d.Run.Error)
	}
	fmt.Fprintln(w)

	if len(d.Rules) > 0 {
		rules := append([]CLIRuleCount(nil), d.Rules...)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Count > rules[j].Count })
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tFINDINGS")
		for _, c := range rules {
			fmt.Fprintf(tw, "%s\t%d\n", c.Rule, c.Count)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	formatFindingsText(w, d.Findings)
}

// formatRunsText formats CLIRun results as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDOCUMENTS\tFINDINGS\tDEGRADED\tROOT")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			id, r.StartedAt, r.Status, r.Documents, r.Expected, r.Findings, r.Degraded, r.Root)
	}
	tw.Flush()
}

// formatRulesText formats CLIRule results as aligned columns.
func formatRulesText(w io.Writer, rules []CLIRule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tKIND")
	for _, r := range rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Index, r.Name, r.Kind)
	}
	tw.Flush()
}

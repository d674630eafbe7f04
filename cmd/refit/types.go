package main

import (
	"sort"
	"time"

	"github.com/jward/refit"
	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/store"
)

// CLIResult is the top-level envelope for every command.
type CLIResult struct {
	Command string `json:"command" msgpack:"command"`
	Results any    `json:"results" msgpack:"results"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// CLIFinding is a serializable finding.
type CLIFinding struct {
	Rule      string   `json:"rule" msgpack:"rule"`
	Message   string   `json:"message" msgpack:"message"`
	File      string   `json:"file" msgpack:"file"`
	StartLine int      `json:"start_line" msgpack:"start_line"`
	StartCol  int      `json:"start_col" msgpack:"start_col"`
	EndLine   int      `json:"end_line" msgpack:"end_line"`
	EndCol    int      `json:"end_col" msgpack:"end_col"`
	Edit      *CLIEdit `json:"edit,omitempty" msgpack:"edit,omitempty"`
}

// CLIEdit is a byte-range replacement attached to a finding.
type CLIEdit struct {
	StartByte int    `json:"start_byte" msgpack:"start_byte"`
	EndByte   int    `json:"end_byte" msgpack:"end_byte"`
	NewText   string `json:"new_text" msgpack:"new_text"`
}

// CLIDegraded is a document whose analysis was incomplete.
type CLIDegraded struct {
	Unit   string   `json:"unit" msgpack:"unit"`
	File   string   `json:"file" msgpack:"file"`
	Errors []string `json:"errors" msgpack:"errors"`
}

// CLIRun summarizes one analysis run.
type CLIRun struct {
	ID         string `json:"id,omitempty" msgpack:"id,omitempty"`
	Root       string `json:"root" msgpack:"root"`
	Language   string `json:"language" msgpack:"language"`
	Policy     string `json:"policy" msgpack:"policy"`
	StartedAt  string `json:"started_at" msgpack:"started_at"`
	DurationMS int64  `json:"duration_ms" msgpack:"duration_ms"`
	Documents  int    `json:"documents" msgpack:"documents"`
	Expected   int    `json:"expected" msgpack:"expected"`
	Findings   int    `json:"findings" msgpack:"findings"`
	Degraded   int    `json:"degraded" msgpack:"degraded"`
	Status     string `json:"status" msgpack:"status"`
	Error      string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// CLIScanReport is the result of the scan command.
type CLIScanReport struct {
	Run      CLIRun        `json:"run" msgpack:"run"`
	Findings []CLIFinding  `json:"findings" msgpack:"findings"`
	Degraded []CLIDegraded `json:"degraded,omitempty" msgpack:"degraded,omitempty"`
}

// CLIRunDetail is the result of the show command.
type CLIRunDetail struct {
	Run      CLIRun         `json:"run" msgpack:"run"`
	Rules    []CLIRuleCount `json:"rules" msgpack:"rules"`
	Findings []CLIFinding   `json:"findings" msgpack:"findings"`
}

// CLIRuleCount is the number of findings one rule produced in a run.
type CLIRuleCount struct {
	Rule  string `json:"rule" msgpack:"rule"`
	Count int    `json:"count" msgpack:"count"`
}

// CLIRule is a registered analyzer.
type CLIRule struct {
	Index int    `json:"index" msgpack:"index"`
	Name  string `json:"name" msgpack:"name"`
	Kind  string `json:"kind" msgpack:"kind"`
}

// CLICount is the result of the count command.
type CLICount struct {
	Root      string `json:"root" msgpack:"root"`
	Language  string `json:"language" msgpack:"language"`
	Units     int    `json:"units" msgpack:"units"`
	Documents int    `json:"documents" msgpack:"documents"`
	Eligible  int    `json:"eligible" msgpack:"eligible"`
}

// toCLIFindings converts engine findings, sorted by file, position and rule
// so output is stable across runs.
func toCLIFindings(findings []analysis.Finding) []CLIFinding {
	out := make([]CLIFinding, len(findings))
	for i, f := range findings {
		out[i] = CLIFinding{
			Rule:      f.Rule,
			Message:   f.Message,
			File:      f.Location.Path,
			StartLine: f.Location.StartLine,
			StartCol:  f.Location.StartCol,
			EndLine:   f.Location.EndLine,
			EndCol:    f.Location.EndCol,
		}
		if !f.Edit.IsZero() {
			out[i].Edit = &CLIEdit{StartByte: f.Edit.StartByte, EndByte: f.Edit.EndByte, NewText: f.Edit.NewText}
		}
	}
	sortCLIFindings(out)
	return out
}

func sortCLIFindings(fs []CLIFinding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.StartCol != b.StartCol {
			return a.StartCol < b.StartCol
		}
		return a.Rule < b.Rule
	})
}

func toCLIDegraded(ds []refit.Degraded) []CLIDegraded {
	out := make([]CLIDegraded, len(ds))
	for i, d := range ds {
		errs := make([]string, len(d.Errors))
		for j, err := range d.Errors {
			errs[j] = err.Error()
		}
		out[i] = CLIDegraded{Unit: d.Unit, File: d.Path, Errors: errs}
	}
	return out
}

// toStoreFindings converts engine findings for SaveRun.
func toStoreFindings(findings []analysis.Finding) []store.Finding {
	out := make([]store.Finding, len(findings))
	for i, f := range findings {
		out[i] = store.Finding{
			Rule:      f.Rule,
			Message:   f.Message,
			Path:      f.Location.Path,
			StartLine: f.Location.StartLine,
			StartCol:  f.Location.StartCol,
			EndLine:   f.Location.EndLine,
			EndCol:    f.Location.EndCol,
		}
		if !f.Edit.IsZero() {
			out[i].Edit = &store.Edit{StartByte: f.Edit.StartByte, EndByte: f.Edit.EndByte, NewText: f.Edit.NewText}
		}
	}
	return out
}

func storeFindingsToCLI(findings []*store.Finding) []CLIFinding {
	out := make([]CLIFinding, len(findings))
	for i, f := range findings {
		out[i] = CLIFinding{
			Rule:      f.Rule,
			Message:   f.Message,
			File:      f.Path,
			StartLine: f.StartLine,
			StartCol:  f.StartCol,
			EndLine:   f.EndLine,
			EndCol:    f.EndCol,
		}
		if f.Edit != nil {
			out[i].Edit = &CLIEdit{StartByte: f.Edit.StartByte, EndByte: f.Edit.EndByte, NewText: f.Edit.NewText}
		}
	}
	sortCLIFindings(out)
	return out
}

func toCLIRun(r *store.Run) CLIRun {
	return CLIRun{
		ID:         r.ID,
		Root:       r.Root,
		Language:   r.Language,
		Policy:     r.Policy,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		Documents:  r.Documents,
		Expected:   r.Expected,
		Findings:   r.Findings,
		Degraded:   r.Degraded,
		Status:     r.Status,
		Error:      r.Error,
	}
}

package store

import "time"

// Run status values.
const (
	StatusOK      = "ok"
	StatusAborted = "aborted"
)

// Run is one recorded analysis run.
type Run struct {
	ID         string
	Root       string
	Language   string
	Policy     string
	StartedAt  time.Time
	FinishedAt time.Time
	Documents  int
	Expected   int
	Findings   int
	Degraded   int
	Status     string
	Error      string // empty unless Status is StatusAborted
}

// Finding is one recorded finding of a run. Lines and columns are 1-based.
type Finding struct {
	ID        int64
	RunID     string
	Rule      string
	Message   string
	Path      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Edit      *Edit // nil when the finding carries no edit
}

// Edit is a recorded byte-range replacement.
type Edit struct {
	StartByte int
	EndByte   int
	NewText   string
}

// RuleCount is the number of findings a rule produced in one run.
type RuleCount struct {
	Rule  string
	Count int
}

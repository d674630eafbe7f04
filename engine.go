package refit

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/workspace"
)

// DefaultLanguage is the unit language analyzed when WithLanguage is not set.
const DefaultLanguage = "csharp"

// FailurePolicy decides what a run does when an analyzer fails.
type FailurePolicy int

const (
	// FailFast aborts the run at the first failing document. No later
	// document is analyzed and no further progress is reported.
	FailFast FailurePolicy = iota
	// ContinueOnFailure records the failure on the document and moves on.
	ContinueOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case ContinueOnFailure:
		return "continue"
	default:
		return "unknown"
	}
}

// ProgressFunc receives the number of documents completed so far. It is
// called from the goroutine running Analyze, once per document, with
// strictly increasing values starting at 1.
type ProgressFunc func(done int)

// Engine runs a fixed set of analyzers over the eligible documents of a
// workspace snapshot.
type Engine struct {
	registry *analysis.Registry
	filter   Filter
	workers  int
	policy   FailurePolicy
	logger   logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguage sets the unit language to analyze.
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.filter.Language = lang
	}
}

// WithWorkers sets the size of the analyzer worker pool. Zero or less
// selects one worker per CPU, capped at the number of analyzers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithFailurePolicy sets how analyzer failures are handled. The default is
// FailFast.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine that runs the analyzers in registry. A nil registry
// is treated as empty.
func New(registry *analysis.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = analysis.MustRegistry()
	}
	e := &Engine{
		registry: registry,
		filter:   Filter{Language: DefaultLanguage},
		policy:   FailFast,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's analyzers.
func (e *Engine) Registry() *analysis.Registry { return e.registry }

// Policy returns the engine's failure policy.
func (e *Engine) Policy() FailurePolicy { return e.policy }

// Filter returns the filter used by MaxProgress and Analyze.
func (e *Engine) Filter() Filter { return e.filter }

// MaxProgress returns the number of progress ticks Analyze will report for
// snap: the count of documents passing both filter stages. A nil snapshot
// yields 0.
func (e *Engine) MaxProgress(snap *workspace.Snapshot) int {
	return len(e.filter.Eligible(snap))
}

// Degraded records a document whose analysis was incomplete under
// ContinueOnFailure.
type Degraded struct {
	Unit   string
	Path   string
	Errors []error
}

// Result is the outcome of a run.
type Result struct {
	// Findings from every analyzer on every completed document. Order is
	// unspecified.
	Findings []analysis.Finding
	// Degraded lists documents with failed analyzers, in document order.
	Degraded []Degraded
	// Documents is the number of documents completed, equal to the last
	// progress value reported.
	Documents int
}

// Analyze runs every analyzer on every eligible document of snap.
//
// Documents are processed one at a time in unit order then document order.
// For each document the syntax tree is built first, then all analyzers run
// concurrently on it; progress is reported once they have all finished. ctx
// is checked between documents.
//
// Under FailFast the first failure stops the run: the returned Result holds
// the findings gathered so far and the error is an *AnalyzerError or a
// *DocumentError. A nil snapshot yields an empty Result.
func (e *Engine) Analyze(ctx context.Context, snap *workspace.Snapshot, progress ProgressFunc) (*Result, error) {
	result := &Result{}
	if snap == nil {
		e.logger.Debug("no workspace snapshot, nothing to analyze")
		return result, nil
	}

	targets := e.filter.Eligible(snap)
	analyzers := e.registry.Analyzers()
	workers := e.workers
	if workers < 1 {
		workers = defaultWorkers(len(analyzers))
	}

	log := e.logger.WithFields(logrus.Fields{
		"language":  e.filter.Language,
		"documents": len(targets),
		"analyzers": len(analyzers),
		"workers":   workers,
		"policy":    e.policy.String(),
	})
	log.Info("analysis started")
	start := time.Now()

	results := NewResultSet()
	p := newPool(ctx, analyzers, workers, results)

	var runErr error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		degraded, err := e.analyzeDocument(ctx, p, t)
		if err != nil {
			runErr = err
			break
		}
		if degraded != nil {
			result.Degraded = append(result.Degraded, *degraded)
		}
		result.Documents++
		if progress != nil {
			progress(result.Documents)
		}
	}

	if err := p.close(); err != nil && runErr == nil {
		runErr = err
	}
	findings, err := results.Drain()
	if err != nil && runErr == nil {
		runErr = err
	}
	result.Findings = findings

	fields := logrus.Fields{
		"completed": result.Documents,
		"findings":  len(result.Findings),
		"degraded":  len(result.Degraded),
		"elapsed":   time.Since(start).Round(time.Millisecond).String(),
	}
	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Warn("analysis aborted")
		return result, runErr
	}
	log.WithFields(fields).Info("analysis finished")
	return result, nil
}

// analyzeDocument builds the tree and context for one document and fans the
// analyzers out over it. It returns an error only when the run must stop.
func (e *Engine) analyzeDocument(ctx context.Context, p *pool, t Target) (*Degraded, error) {
	path := t.Document.Path
	log := e.logger.WithFields(logrus.Fields{"unit": t.Unit.Name, "path": path})

	tree, err := t.Document.SyntaxTree(ctx)
	if err != nil {
		derr := &DocumentError{Path: path, Err: err}
		if e.policy == FailFast {
			return nil, derr
		}
		log.WithError(err).Warn("document skipped")
		return &Degraded{Unit: t.Unit.Name, Path: path, Errors: []error{derr}}, nil
	}

	doc := &documentRun{
		path: path,
		tree: tree,
		actx: &analysis.Context{
			Unit:     t.Unit.Name,
			UnitDir:  t.Unit.Dir,
			Path:     path,
			Language: t.Document.Language,
			Logger:   log,
		},
	}
	failures := p.run(doc)
	log.WithField("failures", len(failures)).Debug("document analyzed")

	if len(failures) == 0 {
		return nil, nil
	}
	if e.policy == FailFast {
		return nil, failures[0]
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		log.WithField("analyzer", f.Analyzer).WithError(f.Err).Warn("analyzer failed")
		errs[i] = f
	}
	return &Degraded{Unit: t.Unit.Name, Path: path, Errors: errs}, nil
}

// Err joins the errors of a degraded document.
func (d Degraded) Err() error {
	return errors.Join(d.Errors...)
}

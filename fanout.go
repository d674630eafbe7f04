package refit

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// invocation wraps one analyzer for the duration of a run. The engine builds
// one per registered analyzer, not one per document.
type invocation struct {
	index    int
	analyzer analysis.Analyzer
}

// documentRun is the state of one document's fan-out: the tree and context
// every analyzer reads, and the join point the engine waits on.
type documentRun struct {
	path string
	tree *syntax.Tree
	actx *analysis.Context

	wg       sync.WaitGroup
	mu       sync.Mutex
	failures []indexedFailure
}

type indexedFailure struct {
	index int
	err   *AnalyzerError
}

func (d *documentRun) fail(index int, err *AnalyzerError) {
	d.mu.Lock()
	d.failures = append(d.failures, indexedFailure{index: index, err: err})
	d.mu.Unlock()
}

// job is one analyzer applied to one document.
type job struct {
	inv *invocation
	doc *documentRun
}

// pool runs jobs on a fixed set of workers for the lifetime of one run.
type pool struct {
	ctx     context.Context
	results *ResultSet
	invs    []*invocation
	jobs    chan job
	g       errgroup.Group
	once    sync.Once
}

// defaultWorkers sizes the pool: one worker per CPU, never more than there
// are analyzers, and at least one.
func defaultWorkers(analyzers int) int {
	return max(min(runtime.NumCPU(), analyzers), 1)
}

func newPool(ctx context.Context, analyzers []analysis.Analyzer, workers int, results *ResultSet) *pool {
	p := &pool{
		ctx:     ctx,
		results: results,
		invs:    make([]*invocation, len(analyzers)),
		jobs:    make(chan job),
	}
	for i, a := range analyzers {
		p.invs[i] = &invocation{index: i, analyzer: a}
	}
	if workers < 1 {
		workers = defaultWorkers(len(analyzers))
	}
	for range workers {
		p.g.Go(func() error {
			// Workers drain every job they are handed; the engine waits on
			// each document's WaitGroup, so a worker must never drop one.
			for j := range p.jobs {
				p.execute(j)
			}
			return nil
		})
	}
	return p
}

// run applies every analyzer to doc concurrently and returns once all of
// them have finished. Failures come back in registry order.
func (p *pool) run(doc *documentRun) []*AnalyzerError {
	doc.wg.Add(len(p.invs))
	for _, inv := range p.invs {
		p.jobs <- job{inv: inv, doc: doc}
	}
	doc.wg.Wait()

	sort.Slice(doc.failures, func(i, j int) bool {
		return doc.failures[i].index < doc.failures[j].index
	})
	out := make([]*AnalyzerError, len(doc.failures))
	for i, f := range doc.failures {
		out[i] = f.err
	}
	return out
}

func (p *pool) execute(j job) {
	defer j.doc.wg.Done()
	if err := j.inv.call(p.ctx, j.doc, p.results); err != nil {
		j.doc.fail(j.inv.index, err)
	}
}

// close stops the workers once the last document has been joined.
func (p *pool) close() error {
	p.once.Do(func() { close(p.jobs) })
	return p.g.Wait()
}

// call runs the analyzer on doc and appends its findings to results. A
// panic is recovered and reported as ErrAnalyzerPanic. Findings from a
// failed call are discarded.
func (inv *invocation) call(ctx context.Context, doc *documentRun, results *ResultSet) (aerr *AnalyzerError) {
	name := inv.analyzer.Name()
	defer func() {
		if r := recover(); r != nil {
			aerr = &AnalyzerError{
				Path:     doc.path,
				Analyzer: name,
				Err:      fmt.Errorf("%w: %v", ErrAnalyzerPanic, r),
			}
		}
	}()

	findings, err := inv.analyzer.Analyze(ctx, doc.tree, doc.actx)
	if err != nil {
		return &AnalyzerError{Path: doc.path, Analyzer: name, Err: err}
	}
	if err := results.Add(findings...); err != nil {
		return &AnalyzerError{Path: doc.path, Analyzer: name, Err: err}
	}
	return nil
}

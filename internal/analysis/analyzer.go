package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/syntax"
)

// ErrDuplicateAnalyzer is returned by NewRegistry when two analyzers share a name.
var ErrDuplicateAnalyzer = errors.New("analysis: duplicate analyzer name")

// Analyzer is one modernization rule.
//
// Implementations are stateless: Analyze may run concurrently with other
// analyzers (and with itself on other trees), must not mutate the tree or
// the context, and must not retain either after returning. Zero findings is
// a valid result; an error means the analyzer could not do its job.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, tree *syntax.Tree, actx *Context) ([]Finding, error)
}

// Context is the read-only per-document information shared by every
// analyzer running on that document.
type Context struct {
	Unit     string
	UnitDir  string
	Path     string
	Language string
	Logger   logrus.FieldLogger
}

// Func adapts a function to the Analyzer interface.
type Func struct {
	name string
	fn   func(ctx context.Context, tree *syntax.Tree, actx *Context) ([]Finding, error)
}

// NewFunc returns an Analyzer named name that calls fn.
func NewFunc(name string, fn func(ctx context.Context, tree *syntax.Tree, actx *Context) ([]Finding, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Analyze(ctx context.Context, tree *syntax.Tree, actx *Context) ([]Finding, error) {
	return f.fn(ctx, tree, actx)
}

// Registry is a fixed, ordered set of analyzers. It is built once and never
// changes afterwards.
type Registry struct {
	analyzers []Analyzer
}

// NewRegistry builds a registry from the given analyzers, in order. Names
// must be unique and non-empty.
func NewRegistry(analyzers ...Analyzer) (*Registry, error) {
	seen := make(map[string]bool, len(analyzers))
	list := make([]Analyzer, 0, len(analyzers))
	for i, a := range analyzers {
		if a == nil {
			return nil, fmt.Errorf("analysis: analyzer %d is nil", i)
		}
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("analysis: analyzer %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAnalyzer, name)
		}
		seen[name] = true
		list = append(list, a)
	}
	return &Registry{analyzers: list}, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for
// package-level registries built from constant analyzer lists.
func MustRegistry(analyzers ...Analyzer) *Registry {
	r, err := NewRegistry(analyzers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of analyzers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.analyzers)
}

// Analyzers returns the analyzers in registration order. The returned slice
// is a copy.
func (r *Registry) Analyzers() []Analyzer {
	if r == nil {
		return nil
	}
	out := make([]Analyzer, len(r.analyzers))
	copy(out, r.analyzers)
	return out
}

// Names returns the analyzer names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		names[i] = a.Name()
	}
	return names
}

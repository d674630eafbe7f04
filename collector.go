package refit

import (
	"sync"

	"github.com/jward/refit/internal/analysis"
)

// ResultSet accumulates findings from concurrent analyzers.
//
// Thread safety: the mutex protects the slice and the drained flag. Add may
// be called from any number of goroutines; Drain is called once, after every
// writer has finished.
type ResultSet struct {
	mu       sync.Mutex
	findings []analysis.Finding
	drained  bool
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Add appends findings. The relative order of findings added by different
// goroutines is unspecified.
func (r *ResultSet) Add(findings ...analysis.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return ErrResultSetDrained
	}
	r.findings = append(r.findings, findings...)
	return nil
}

// Len returns the number of findings added so far.
func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.findings)
}

// Drain returns every finding and closes the set to further writes.
func (r *ResultSet) Drain() ([]analysis.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return nil, ErrResultSetDrained
	}
	r.drained = true
	out := r.findings
	r.findings = nil
	return out, nil
}

package refit

import (
	"errors"
	"fmt"
)

var (
	// ErrAnalyzerPanic wraps a panic recovered from an analyzer.
	ErrAnalyzerPanic = errors.New("refit: analyzer panicked")

	// ErrResultSetDrained is returned by ResultSet.Add and ResultSet.Drain
	// once the set has been drained.
	ErrResultSetDrained = errors.New("refit: result set already drained")
)

// AnalyzerError reports an analyzer that failed on one document.
type AnalyzerError struct {
	Path     string
	Analyzer string
	Err      error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("refit: analyzer %s failed on %s: %v", e.Analyzer, e.Path, e.Err)
}

func (e *AnalyzerError) Unwrap() error { return e.Err }

// DocumentError reports a document whose syntax tree could not be obtained.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("refit: document %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

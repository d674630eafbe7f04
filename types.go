package refit

import (
	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
	"github.com/jward/refit/internal/workspace"
)

// Public type aliases for the internal types that appear in the Engine API.
// These are Go type aliases (=), so no conversion is needed.

type Analyzer = analysis.Analyzer
type AnalysisContext = analysis.Context
type Registry = analysis.Registry
type Finding = analysis.Finding
type Location = analysis.Location
type Edit = analysis.Edit
type SyntaxTree = syntax.Tree
type Snapshot = workspace.Snapshot
type Unit = workspace.Unit
type Document = workspace.Document

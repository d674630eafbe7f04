// Package analysis defines the contract between the engine and the
// modernization analyzers it runs: the Analyzer interface, the per-document
// Context, the Finding value analyzers emit, and the fixed Registry.
package analysis

import (
	"fmt"

	"github.com/jward/refit/internal/syntax"
)

// Location is a 1-based source span inside one document, plus the byte
// offsets it covers.
type Location struct {
	Path      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	StartByte int
	EndByte   int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.StartLine, l.StartCol)
}

// Edit is a machine-applicable replacement of a byte range. The zero value
// means "no edit".
type Edit struct {
	StartByte int
	EndByte   int
	NewText   string
}

// IsZero reports whether e carries no replacement.
func (e Edit) IsZero() bool { return e == Edit{} }

// Finding is one detected modernization opportunity. Findings are plain
// values: once emitted they are never modified, and copies may be handed to
// any goroutine.
type Finding struct {
	Rule     string
	Message  string
	Location Location
	Edit     Edit
}

// LocationOf returns the location of n within tree.
func LocationOf(tree *syntax.Tree, n *syntax.Node) Location {
	return Location{
		Path:      tree.Path(),
		StartLine: n.Start().Line + 1,
		StartCol:  n.Start().Column + 1,
		EndLine:   n.End().Line + 1,
		EndCol:    n.End().Column + 1,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
	}
}

// Replace builds an edit that replaces n's text with newText.
func Replace(n *syntax.Node, newText string) Edit {
	return Edit{StartByte: n.StartByte(), EndByte: n.EndByte(), NewText: newText}
}

// NewFinding is a convenience constructor for a finding located at n.
func NewFinding(tree *syntax.Tree, n *syntax.Node, rule, message string, edit Edit) Finding {
	return Finding{
		Rule:     rule,
		Message:  message,
		Location: LocationOf(tree, n),
		Edit:     edit,
	}
}

package refit

import (
	"strings"

	"github.com/jward/refit/internal/workspace"
)

// generatedSuffixes mark tool-generated files. Matching is case-insensitive.
var generatedSuffixes = []string{
	".designer.cs",
	".generated.cs",
	".g.cs",
	".g.i.cs",
	".assemblyattributes.cs",
	".pb.go",
	"_generated.go",
}

// IsGenerated reports whether path names a tool-generated file. An empty
// path is not generated.
func IsGenerated(path string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Filter selects the units and documents a run analyzes. Progress estimation
// and analysis both go through Eligible, so they always agree.
type Filter struct {
	// Language is the unit language to keep. Comparison is case-sensitive.
	Language string
}

// Unit reports whether u is in the target language.
func (f Filter) Unit(u *workspace.Unit) bool {
	return u != nil && u.Language == f.Language
}

// Document reports whether d can be parsed and is not generated.
func (f Filter) Document(d *workspace.Document) bool {
	return d != nil && d.SupportsSyntax && !IsGenerated(d.Path)
}

// Target is one eligible document and the unit it belongs to.
type Target struct {
	Unit     *workspace.Unit
	Document *workspace.Document
}

// Eligible returns the documents of snap that pass both filter stages, in
// unit order then document order. A nil snapshot has no eligible documents.
func (f Filter) Eligible(snap *workspace.Snapshot) []Target {
	var out []Target
	for _, u := range snap.Units() {
		if !f.Unit(u) {
			continue
		}
		for _, d := range u.Documents {
			if f.Document(d) {
				out = append(out, Target{Unit: u, Document: d})
			}
		}
	}
	return out
}

package workspace

import (
	"context"
	"fmt"
	"os"

	"github.com/jward/refit/internal/syntax"
)

// LoadFunc returns the current source of a document.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Document is one source file of a compilation unit.
//
// SupportsSyntax is false for documents refit recognises but cannot parse,
// e.g. Razor views or languages without a bundled grammar.
type Document struct {
	Path           string
	Language       string
	SupportsSyntax bool

	load LoadFunc
}

// NewDocument returns an in-memory document holding src.
func NewDocument(path, lang string, src []byte) *Document {
	data := append([]byte(nil), src...)
	return NewLazyDocument(path, lang, func(context.Context) ([]byte, error) {
		return data, nil
	})
}

// NewFileDocument returns a document whose source is read from file on
// every access. path is the name reported in findings.
func NewFileDocument(path, lang, file string) *Document {
	return NewLazyDocument(path, lang, func(context.Context) ([]byte, error) {
		return os.ReadFile(file)
	})
}

// NewLazyDocument returns a document whose source comes from load.
func NewLazyDocument(path, lang string, load LoadFunc) *Document {
	return &Document{
		Path:           path,
		Language:       lang,
		SupportsSyntax: syntax.CanParse(path, lang),
		load:           load,
	}
}

// Source returns the document's current source.
func (d *Document) Source(ctx context.Context) ([]byte, error) {
	if d.load == nil {
		return nil, fmt.Errorf("workspace: %s has no source", d.Path)
	}
	src, err := d.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("workspace: reading %s: %w", d.Path, err)
	}
	return src, nil
}

// SyntaxTree reads and parses the document. Every call builds a new tree;
// callers keep it only as long as they need it.
func (d *Document) SyntaxTree(ctx context.Context) (*syntax.Tree, error) {
	if !d.SupportsSyntax {
		return nil, fmt.Errorf("workspace: %s: %w", d.Path, syntax.ErrUnsupportedLanguage)
	}
	src, err := d.Source(ctx)
	if err != nil {
		return nil, err
	}
	return syntax.Parse(ctx, d.Path, d.Language, src)
}

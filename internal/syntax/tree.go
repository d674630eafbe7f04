// Package syntax turns source documents into immutable syntax trees.
//
// Parsing is done with tree-sitter, but the resulting CGO-backed tree is
// copied into plain Go values before Parse returns. A *Tree is therefore
// safe to read from any number of goroutines at once, which is what lets
// every analyzer for a document walk the same tree concurrently.
package syntax

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedLanguage is returned by Parse for languages without a grammar.
var ErrUnsupportedLanguage = errors.New("syntax: unsupported language")

// Point is a zero-based line/column position.
type Point struct {
	Line   int
	Column int
}

// Node is one node of an immutable syntax tree.
type Node struct {
	id        int
	kind      string
	named     bool
	missing   bool
	start     Point
	end       Point
	startByte int
	endByte   int
	parent    *Node
	children  []*Node
}

func (n *Node) ID() int { return n.id }
func (n *Node) Type() string { return n.kind }
func (n *Node) IsNamed() bool { return n.named }
func (n *Node) IsMissing() bool { return n.missing }
func (n *Node) Start() Point { return n.start }
func (n *Node) End() Point { return n.end }
func (n *Node) StartByte() int { return n.startByte }
func (n *Node) EndByte() int { return n.endByte }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) ChildCount() int { return len(n.children) }
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns all children, named and anonymous.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// NamedChildren returns the named children in source order.
func (n *Node) NamedChildren() []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.named {
			out = append(out, c)
		}
	}
	return out
}

// HasChildOfType reports whether any direct child (named or anonymous) has
// the given type. Anonymous children carry operator and keyword tokens.
func (n *Node) HasChildOfType(kind string) bool {
	for _, c := range n.children {
		if c.kind == kind {
			return true
		}
	}
	return false
}

// Ancestor returns the closest ancestor whose type is one of kinds, or nil.
func (n *Node) Ancestor(kinds ...string) *Node {
	for p := n.parent; p != nil; p = p.parent {
		for _, k := range kinds {
			if p.kind == k {
				return p
			}
		}
	}
	return nil
}

// Tree is an immutable parse of one document at one instant.
type Tree struct {
	path     string
	language string
	source   []byte
	root     *Node
	nodes    []*Node // pre-order; nodes[i].id == i
	hasError bool
}

func (t *Tree) Path() string { return t.path }
func (t *Tree) Language() string { return t.language }
func (t *Tree) Root() *Node { return t.root }
func (t *Tree) NodeCount() int { return len(t.nodes) }

// HasError reports whether tree-sitter recovered from syntax errors.
func (t *Tree) HasError() bool { return t.hasError }

// Source returns a copy of the parsed source.
func (t *Tree) Source() []byte {
	out := make([]byte, len(t.source))
	copy(out, t.source)
	return out
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *Node) string {
	return string(t.source[n.startByte:n.endByte])
}

// Node returns the node with the given pre-order id.
func (t *Tree) Node(id int) (*Node, bool) {
	if id < 0 || id >= len(t.nodes) {
		return nil, false
	}
	return t.nodes[id], true
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var visit func(n *Node)
	visit = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	if t.root != nil {
		visit(t.root)
	}
}

// FindAll returns every node whose type is one of kinds, in pre-order.
func (t *Tree) FindAll(kinds ...string) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		for _, k := range kinds {
			if n.kind == k {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Parse parses src as the given language and returns an immutable tree.
// The tree-sitter tree is discarded once it has been copied.
func Parse(ctx context.Context, path, lang string, src []byte) (*Tree, error) {
	grammar, ok := GrammarForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	source := make([]byte, len(src))
	copy(source, src)

	tsTree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse %s: %w", path, err)
	}

	t := &Tree{path: path, language: lang, source: source}
	root, err := t.convert(tsTree.RootNode(), nil)
	if err != nil {
		return nil, fmt.Errorf("syntax: convert %s: %w", path, err)
	}
	t.root = root
	t.hasError = tsTree.RootNode().HasError()
	return t, nil
}

// convert copies a tree-sitter node and its subtree, assigning pre-order ids.
func (t *Tree) convert(sn *sitter.Node, parent *Node) (*Node, error) {
	n := &Node{
		id:      len(t.nodes),
		kind:    sn.Type(),
		named:   sn.IsNamed(),
		missing: sn.IsMissing(),
		parent:  parent,
	}
	t.nodes = append(t.nodes, n)

	var err error
	if n.startByte, err = safecast.Conv[int](sn.StartByte()); err != nil {
		return nil, err
	}
	if n.endByte, err = safecast.Conv[int](sn.EndByte()); err != nil {
		return nil, err
	}
	if n.start, err = toPoint(sn.StartPoint()); err != nil {
		return nil, err
	}
	if n.end, err = toPoint(sn.EndPoint()); err != nil {
		return nil, err
	}

	count := int(sn.ChildCount())
	if count > 0 {
		n.children = make([]*Node, 0, count)
	}
	for i := range count {
		child, err := t.convert(sn.Child(i), n)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

func toPoint(p sitter.Point) (Point, error) {
	line, err := safecast.Conv[int](p.Row)
	if err != nil {
		return Point{}, err
	}
	col, err := safecast.Conv[int](p.Column)
	if err != nil {
		return Point{}, err
	}
	return Point{Line: line, Column: col}, nil
}

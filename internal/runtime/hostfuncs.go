package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/syntax"
)

// session is the state of one script evaluation: the tree it reads and the
// findings it has reported so far.
type session struct {
	rule string
	tree *syntax.Tree
	actx *analysis.Context

	mu       sync.Mutex
	findings []analysis.Finding
}

func newSession(rule string, tree *syntax.Tree, actx *analysis.Context) *session {
	return &session{rule: rule, tree: tree, actx: actx}
}

func (s *session) add(f analysis.Finding) {
	s.mu.Lock()
	s.findings = append(s.findings, f)
	s.mu.Unlock()
}

func (s *session) results() []analysis.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]analysis.Finding(nil), s.findings...)
}

// nodeObject converts a node into the map scripts see:
// {id, type, text, named, missing, line, col, end_line, end_col}. Lines and
// columns are 1-based. missing marks a node the parser inserted during error
// recovery.
func (s *session) nodeObject(n *syntax.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	loc := analysis.LocationOf(s.tree, n)
	return object.NewMap(map[string]object.Object{
		"id":       object.NewInt(int64(n.ID())),
		"type":     object.NewString(n.Type()),
		"text":     object.NewString(s.tree.Text(n)),
		"named":    object.NewBool(n.IsNamed()),
		"missing":  object.NewBool(n.IsMissing()),
		"line":     object.NewInt(int64(loc.StartLine)),
		"col":      object.NewInt(int64(loc.StartCol)),
		"end_line": object.NewInt(int64(loc.EndLine)),
		"end_col":  object.NewInt(int64(loc.EndCol)),
	})
}

func (s *session) nodeList(nodes []*syntax.Node) object.Object {
	items := make([]object.Object, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, s.nodeObject(n))
	}
	return object.NewList(items)
}

// lookup resolves a node argument, given either as an id or as a node map.
func (s *session) lookup(arg object.Object) (*syntax.Node, error) {
	var id int64
	switch v := arg.(type) {
	case *object.Int:
		id = v.Value()
	case *object.Map:
		raw, ok := v.Value()["id"]
		if !ok {
			return nil, fmt.Errorf("node map has no id")
		}
		i, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("node id: %w", err)
		}
		id = i
	default:
		return nil, fmt.Errorf("expected node or id, got %s", arg.Type())
	}
	n, ok := s.tree.Node(int(id))
	if !ok {
		return nil, fmt.Errorf("no node with id %d", id)
	}
	return n, nil
}

// makeFindFn creates the "find" host function.
//
// find(type, ...) → list of nodes of any of the given types, in source order
func makeFindFn(s *session) *object.Builtin {
	return object.NewBuiltin("find", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) == 0 {
			return object.NewArgsError("find", 1, 0)
		}
		kinds := make([]string, 0, len(args))
		for _, a := range args {
			k, err := toString(a)
			if err != nil {
				return object.Errorf("find: %v", err)
			}
			kinds = append(kinds, k)
		}
		return s.nodeList(s.tree.FindAll(kinds...))
	})
}

// makeChildrenFn creates the "children" host function.
//
// children(node) → list of named children
func makeChildrenFn(s *session) *object.Builtin {
	return object.NewBuiltin("children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("children", 1, len(args))
		}
		n, err := s.lookup(args[0])
		if err != nil {
			return object.Errorf("children: %v", err)
		}
		return s.nodeList(n.NamedChildren())
	})
}

// makeParentFn creates the "parent" host function.
//
// parent(node) → node or nil
func makeParentFn(s *session) *object.Builtin {
	return object.NewBuiltin("parent", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parent", 1, len(args))
		}
		n, err := s.lookup(args[0])
		if err != nil {
			return object.Errorf("parent: %v", err)
		}
		return s.nodeObject(n.Parent())
	})
}

// makeAncestorFn creates the "ancestor" host function.
//
// ancestor(node, type, ...) → nearest enclosing node of any given type, or nil
func makeAncestorFn(s *session) *object.Builtin {
	return object.NewBuiltin("ancestor", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 {
			return object.NewArgsError("ancestor", 2, len(args))
		}
		n, err := s.lookup(args[0])
		if err != nil {
			return object.Errorf("ancestor: %v", err)
		}
		kinds := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			k, err := toString(a)
			if err != nil {
				return object.Errorf("ancestor: %v", err)
			}
			kinds = append(kinds, k)
		}
		return s.nodeObject(n.Ancestor(kinds...))
	})
}

// makeReportFn creates the "report" host function.
//
// report(node, message)              → records a finding
// report(node, message, replacement) → records a finding that replaces node
func makeReportFn(s *session) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 && len(args) != 3 {
			return object.NewArgsError("report", 2, len(args))
		}
		n, err := s.lookup(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		msg, err := toString(args[1])
		if err != nil {
			return object.Errorf("report: message: %v", err)
		}
		var edit analysis.Edit
		if len(args) == 3 {
			text, err := toString(args[2])
			if err != nil {
				return object.Errorf("report: replacement: %v", err)
			}
			edit = analysis.Replace(n, text)
		}
		s.add(analysis.NewFinding(s.tree, n, s.rule, msg, edit))
		return object.Nil
	})
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	log logrus.FieldLogger
}

func (l *logObject) Info(msg string)  { l.log.Info(msg) }
func (l *logObject) Warn(msg string)  { l.log.Warn(msg) }
func (l *logObject) Error(msg string) { l.log.Error(msg) }

// Package workspace models a loaded source tree: compilation units, their
// documents, and immutable snapshots of both.
package workspace

// Unit is one compilation unit (a project). Name identifies it in reports;
// Dir is its slash-separated directory relative to the workspace root.
type Unit struct {
	Name      string
	Dir       string
	Language  string
	Documents []*Document
}

// Snapshot is a fixed view of the workspace. Units and documents must not be
// modified once they are part of a snapshot, so every pass over the same
// snapshot sees the same documents in the same order.
type Snapshot struct {
	units []*Unit
}

// NewSnapshot returns a snapshot of units in the given order.
func NewSnapshot(units ...*Unit) *Snapshot {
	return &Snapshot{units: append([]*Unit(nil), units...)}
}

// Units returns the snapshot's units in order. The slice is a copy.
func (s *Snapshot) Units() []*Unit {
	if s == nil {
		return nil
	}
	return append([]*Unit(nil), s.units...)
}

// DocumentCount returns the number of documents across all units, before
// any filtering.
func (s *Snapshot) DocumentCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, u := range s.units {
		n += len(u.Documents)
	}
	return n
}

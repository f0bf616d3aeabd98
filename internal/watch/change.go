package watch

import (
	"sort"
)

// ChangeKind classifies a single path within a debounce window.
type ChangeKind int

// Change kinds.
const (
	Modified ChangeKind = iota + 1
	Added
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeEvent is the coalesced result of one debounce window. Paths are
// absolute, sorted and unique within and across the three sets.
type ChangeEvent struct {
	Modified []string
	Added    []string
	Removed  []string
}

// Empty reports whether the event carries no paths.
func (e ChangeEvent) Empty() bool {
	return len(e.Modified) == 0 && len(e.Added) == 0 && len(e.Removed) == 0
}

// Changed returns Modified ∪ Added, the paths a browser may reload.
func (e ChangeEvent) Changed() []string {
	out := make([]string, 0, len(e.Modified)+len(e.Added))
	out = append(out, e.Modified...)
	out = append(out, e.Added...)
	sort.Strings(out)

	return out
}

// ChangeSet accumulates raw changes for a debounce window.
// It is not safe for concurrent use.
type ChangeSet struct {
	paths map[string]ChangeKind
}

// NewChangeSet creates an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{paths: make(map[string]ChangeKind)}
}

// Record merges a change for path into the set:
//
//	added    then modified -> added
//	added    then removed  -> dropped
//	removed  then added    -> modified
//	modified then removed  -> removed
func (s *ChangeSet) Record(path string, kind ChangeKind) {
	prev, seen := s.paths[path]
	if !seen {
		s.paths[path] = kind
		return
	}

	switch {
	case prev == Added && kind == Removed:
		delete(s.paths, path)
	case prev == Removed && kind == Added:
		s.paths[path] = Modified
	case kind == Modified:
		// keep prev
	default:
		s.paths[path] = kind
	}
}

// Len returns the number of distinct paths recorded.
func (s *ChangeSet) Len() int {
	return len(s.paths)
}

// Flush returns the accumulated ChangeEvent and resets the set.
func (s *ChangeSet) Flush() ChangeEvent {
	var ev ChangeEvent

	for path, kind := range s.paths {
		switch kind {
		case Modified:
			ev.Modified = append(ev.Modified, path)
		case Added:
			ev.Added = append(ev.Added, path)
		case Removed:
			ev.Removed = append(ev.Removed, path)
		}
	}

	sort.Strings(ev.Modified)
	sort.Strings(ev.Added)
	sort.Strings(ev.Removed)

	s.paths = make(map[string]ChangeKind)

	return ev
}

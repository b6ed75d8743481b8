package core

import "sort"

// ExaminedSet accumulates every path the run opened, stat'd, or probed. The
// depfile is written from it so the build system re-runs the finalizer when
// any input changes.
type ExaminedSet struct {
	paths map[string]struct{}
}

func NewExaminedSet() *ExaminedSet {
	return &ExaminedSet{paths: map[string]struct{}{}}
}

func (s *ExaminedSet) Add(path string) {
	if path == "" {
		return
	}
	s.paths[path] = struct{}{}
}

// Paths returns the examined paths in sorted order.
func (s *ExaminedSet) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for path := range s.paths {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

package types

import "fmt"

// ManifestEntry is one install record from a build manifest: the path the
// file occupies inside the image and the build-relative path it is copied
// from. Group selects which output manifest the entry lands in; entries from
// auxiliary pools carry a nil group until they are pulled into the closure.
type ManifestEntry struct {
	Group  *int
	Target string
	Source string
	Origin string
}

// GroupOrDefault returns the entry's group, or def when none is set.
func (e ManifestEntry) GroupOrDefault(def int) int {
	if e.Group == nil {
		return def
	}
	return *e.Group
}

func (e ManifestEntry) String() string {
	return fmt.Sprintf("%s=%s", e.Target, e.Source)
}

// Group returns a pointer to n, for building entries with a concrete group.
func Group(n int) *int {
	return &n
}

// BinaryEntry pairs an install record with the ELF metadata probed from its
// source file. Records are stored by pointer in the closure so that a later
// discovery through a smaller group promotes the existing record in place.
type BinaryEntry struct {
	Entry ManifestEntry
	Info  *ElfInfo
}

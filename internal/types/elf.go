package types

import "slices"

// ElfInfo is the read-only view of a binary produced by the introspector.
// Needed preserves DT_NEEDED order as it appears in the dynamic section.
type ElfInfo struct {
	Filename string
	Soname   string
	Interp   string
	BuildID  string
	Needed   []string
	Stripped bool
}

// IdentityEquals reports whether two probes describe the same binary
// identity. The Stripped flag and the filename are allowed to differ; they
// are exactly what stripping changes.
func (i *ElfInfo) IdentityEquals(other *ElfInfo) bool {
	if other == nil {
		return false
	}
	return i.BuildID == other.BuildID &&
		i.Soname == other.Soname &&
		i.Interp == other.Interp &&
		slices.Equal(i.Needed, other.Needed)
}

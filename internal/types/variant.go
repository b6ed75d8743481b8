package types

// ToolchainID identifies the toolchain a variant's shared libraries come
// from. Variants that share a toolchain share resolved sonames.
type ToolchainID string

// AuxDep names an auxiliary target a variant's binaries always require,
// optionally forcing it into a specific output group.
type AuxDep struct {
	Target string `yaml:"target"`
	Group  *int   `yaml:"group,omitempty"`
}

// VariantDescriptor describes the build variant that produced a binary:
// where the toolchain's shared libraries for the variant live, the prefix
// its libraries install under, and the soname of its own runtime library
// (which installs unprefixed).
type VariantDescriptor struct {
	Name            string
	SharedToolchain string
	LibPrefix       string
	Runtime         string
	Aux             []AuxDep
}

// Toolchain returns the identity under which this variant's resolved
// sonames are shared.
func (v VariantDescriptor) Toolchain() ToolchainID {
	return ToolchainID(v.SharedToolchain)
}

package types

// VariantRule is one entry of the variant configuration file. Match is the
// runtime soname whose presence in a binary's DT_NEEDED (or as its own
// soname) identifies the variant; the rule with an empty Match is the base
// variant every unmatched binary falls back to. DistDir, when set, is where
// the variant's instrumented binaries are actually built; a binary claimed
// elsewhere but present there gets its source rewritten to the real path.
type VariantRule struct {
	Name            string   `yaml:"name"`
	Match           string   `yaml:"match,omitempty"`
	SharedToolchain string   `yaml:"shared_toolchain"`
	LibPrefix       string   `yaml:"lib_prefix,omitempty"`
	Runtime         string   `yaml:"runtime,omitempty"`
	DistDir         string   `yaml:"dist_dir,omitempty"`
	Aux             []AuxDep `yaml:"aux,omitempty"`
}

// Descriptor converts the rule into the descriptor threaded through
// closure resolution.
func (r VariantRule) Descriptor() VariantDescriptor {
	return VariantDescriptor{
		Name:            r.Name,
		SharedToolchain: r.SharedToolchain,
		LibPrefix:       r.LibPrefix,
		Runtime:         r.Runtime,
		Aux:             r.Aux,
	}
}

// VariantConfig is the YAML document listing all known build variants.
type VariantConfig struct {
	Variants []VariantRule `yaml:"variants"`
}

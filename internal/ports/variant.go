package ports

import "imagefin/internal/types"

// VariantResolverPort identifies which build variant produced a binary. The
// second result, when non-empty, is the real path the binary was built at
// (instrumented variants are sometimes built under an alternate name); the
// caller re-probes and rewrites the entry's source to it.
type VariantResolverPort interface {
	Resolve(info *types.ElfInfo) (types.VariantDescriptor, string, error)
}

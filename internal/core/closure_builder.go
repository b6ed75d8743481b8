package core

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

// ClosureBuilder computes the transitive ELF dependency closure of the
// selected binaries. Resolution is strictly sequential and depth-first:
// correctness of group promotion depends on updating the shared closure and
// soname maps in place, in discovery order.
type ClosureBuilder struct {
	Introspector ports.IntrospectorPort
	Variants     ports.VariantResolverPort
	Examined     *ExaminedSet

	// LoaderSoname is the on-disk name of the dynamic loader. CombinedLibc
	// is the soname that is actually provided by the combined loader binary
	// and is rewritten to it. VdsoSoname is injected by the kernel and never
	// exists as a file. LibDir is the install prefix for shared libraries.
	LoaderSoname string
	CombinedLibc string
	VdsoSoname   string
	LibDir       string

	closure map[string]*types.BinaryEntry
	sonames map[types.ToolchainID]map[string]*types.BinaryEntry
}

// VariantContext threads per-root state through the recursive walk. The
// soname map is shared across every root built with the same toolchain, so
// a library resolved for one root is reused for another. RootDependent is
// kept for diagnostics only.
type VariantContext struct {
	Variant       types.VariantDescriptor
	Sonames       map[string]*types.BinaryEntry
	RootDependent *types.BinaryEntry
}

func NewClosureBuilder(introspector ports.IntrospectorPort, variants ports.VariantResolverPort, examined *ExaminedSet) *ClosureBuilder {
	return &ClosureBuilder{
		Introspector: introspector,
		Variants:     variants,
		Examined:     examined,
		LoaderSoname: "ld.so.1",
		CombinedLibc: "libc.so",
		VdsoSoname:   "linux-vdso.so.1",
		LibDir:       "lib",
		closure:      map[string]*types.BinaryEntry{},
		sonames:      map[types.ToolchainID]map[string]*types.BinaryEntry{},
	}
}

// Resolve probes every selected entry and walks the dependency graph of the
// ELF ones. Entries that are not ELF pass through unchanged as the second
// result. The returned closure maps install target to binary record; later
// calls to ResolveRoot extend the same map.
func (b *ClosureBuilder) Resolve(ctx context.Context, selected []types.ManifestEntry, aux map[string]*types.BinaryEntry) (map[string]*types.BinaryEntry, []types.ManifestEntry, error) {
	var nonbinaries []types.ManifestEntry
	for _, entry := range selected {
		b.Examined.Add(entry.Source)
		info, err := b.Introspector.Probe(entry.Source)
		if err != nil {
			return nil, nil, err
		}
		if info == nil {
			nonbinaries = append(nonbinaries, entry)
			continue
		}
		if entry.Group == nil {
			return nil, nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("selected entry %s (%s) has no group", entry.Target, entry.Origin))
		}
		bin := &types.BinaryEntry{Entry: entry, Info: info}
		if err := b.ResolveRoot(ctx, bin, *entry.Group, false, aux); err != nil {
			return nil, nil, err
		}
	}
	return b.closure, nonbinaries, nil
}

// ResolveRoot resolves one root binary: it identifies the variant that
// produced it, rewrites the source when the variant built it elsewhere,
// builds the variant context, and descends into the dependency walk.
func (b *ClosureBuilder) ResolveRoot(ctx context.Context, bin *types.BinaryEntry, group int, fromAuxiliary bool, aux map[string]*types.BinaryEntry) error {
	variant, realPath, err := b.Variants.Resolve(bin.Info)
	if err != nil {
		return err
	}
	if realPath != "" && realPath != bin.Entry.Source {
		info, err := b.Introspector.Probe(realPath)
		if err != nil {
			return err
		}
		if info == nil {
			return identityMismatch(fmt.Sprintf(
				"variant %s claims %s was built at %q, which is not ELF", variant.Name, bin.Entry.Target, realPath))
		}
		log.Ctx(ctx).Debug().
			Str("target", bin.Entry.Target).
			Str("variant", variant.Name).
			Str("source", realPath).
			Msg("variant rewrote binary source")
		bin.Entry.Source = realPath
		bin.Info = info
		b.Examined.Add(realPath)
	}
	vctx := &VariantContext{
		Variant:       variant,
		Sonames:       b.sonameMap(variant.Toolchain()),
		RootDependent: bin,
	}
	return b.addBinary(ctx, bin, group, vctx, fromAuxiliary, aux)
}

func (b *ClosureBuilder) sonameMap(id types.ToolchainID) map[string]*types.BinaryEntry {
	m, ok := b.sonames[id]
	if !ok {
		m = map[string]*types.BinaryEntry{}
		b.sonames[id] = m
	}
	return m
}

func (b *ClosureBuilder) addBinary(ctx context.Context, bin *types.BinaryEntry, group int, vctx *VariantContext, fromAuxiliary bool, aux map[string]*types.BinaryEntry) error {
	target := bin.Entry.Target
	if existing, ok := b.closure[target]; ok {
		if existing.Entry.Source != bin.Entry.Source {
			return structuralConflict(fmt.Sprintf(
				"target %q maps to both %q and %q (root %s)",
				target, existing.Entry.Source, bin.Entry.Source, vctx.RootDependent.Entry.Target))
		}
		if existing.Entry.Group != nil && *existing.Entry.Group <= group {
			// Already resolved at least as well. This memoization is what
			// makes dependency cycles terminate.
			return nil
		}
		// Group promotion: mutate the stored record and re-walk its
		// dependencies so they inherit the better group too.
		existing.Entry.Group = types.Group(group)
		bin = existing
	} else {
		bin.Entry.Group = types.Group(group)
		b.closure[target] = bin
	}
	assert.NotEmpty(ctx, bin.Entry.Target, "closure entries must carry an install target")
	assert.NotEmpty(ctx, bin.Entry.Source, "closure entries must carry a source path")

	if soname := bin.Info.Soname; soname != "" {
		if prev, ok := vctx.Sonames[soname]; ok {
			if prev.Entry.Source != bin.Entry.Source {
				return structuralConflict(fmt.Sprintf(
					"soname %q provided by both %q and %q (root %s)",
					soname, prev.Entry.Source, bin.Entry.Source, vctx.RootDependent.Entry.Target))
			}
			if prev.Entry.Group == nil || *prev.Entry.Group > group {
				vctx.Sonames[soname] = bin
			}
		} else {
			vctx.Sonames[soname] = bin
		}
	}

	// PT_INTERP names the dynamic loader; it must come from the auxiliary
	// pool, as must every auxiliary the variant mandates.
	if interp := bin.Info.Interp; interp != "" {
		if err := b.addAuxiliary(ctx, path.Join(b.LibDir, interp), group, vctx, bin, aux); err != nil {
			return err
		}
	}
	for _, dep := range vctx.Variant.Aux {
		depGroup := group
		if dep.Group != nil {
			depGroup = *dep.Group
		}
		if err := b.addAuxiliary(ctx, dep.Target, depGroup, vctx, bin, aux); err != nil {
			return err
		}
	}

	for _, soname := range bin.Info.Needed {
		if soname == b.VdsoSoname {
			continue
		}
		if prev, ok := vctx.Sonames[soname]; ok && prev.Entry.Group != nil && *prev.Entry.Group <= group {
			continue
		}
		resolved := soname
		if resolved == b.CombinedLibc {
			resolved = b.LoaderSoname
		}
		prefix := vctx.Variant.LibPrefix
		if resolved == vctx.Variant.Runtime {
			prefix = ""
		}
		libTarget := path.Join(b.LibDir, prefix+resolved)

		if auxBin, ok := aux[libTarget]; ok {
			if err := b.addBinary(ctx, auxBin, group, vctx, true, aux); err != nil {
				return err
			}
			continue
		}
		if fromAuxiliary {
			return auxiliaryViolation(fmt.Sprintf(
				"auxiliary binary %s needs %q, which is not in the auxiliary pool (root %s)",
				bin.Entry.Target, soname, vctx.RootDependent.Entry.Target))
		}

		source := filepath.Join(vctx.Variant.SharedToolchain, resolved)
		b.Examined.Add(source)
		info, err := b.Introspector.Probe(source)
		if err != nil {
			if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
				return missingDependency(fmt.Sprintf(
					"%q needed by %s not found in the auxiliary pool or under %q (root %s)",
					soname, bin.Entry.Target, vctx.Variant.SharedToolchain, vctx.RootDependent.Entry.Target))
			}
			return err
		}
		if info == nil {
			return missingDependency(fmt.Sprintf(
				"%q needed by %s resolves to %s, which is not ELF (root %s)",
				soname, bin.Entry.Target, source, vctx.RootDependent.Entry.Target))
		}
		if info.Soname != resolved {
			return identityMismatch(fmt.Sprintf(
				"library %s reports soname %q, expected %q (root %s)",
				source, info.Soname, resolved, vctx.RootDependent.Entry.Target))
		}
		child := &types.BinaryEntry{
			Entry: types.ManifestEntry{Target: libTarget, Source: source, Origin: bin.Entry.Origin},
			Info:  info,
		}
		if err := b.addBinary(ctx, child, group, vctx, false, aux); err != nil {
			return err
		}
	}
	return nil
}

func (b *ClosureBuilder) addAuxiliary(ctx context.Context, target string, group int, vctx *VariantContext, dependent *types.BinaryEntry, aux map[string]*types.BinaryEntry) error {
	auxBin, ok := aux[target]
	if !ok {
		return missingDependency(fmt.Sprintf(
			"required auxiliary %q for %s is not in the auxiliary pool (root %s)",
			target, dependent.Entry.Target, vctx.RootDependent.Entry.Target))
	}
	return b.addBinary(ctx, auxBin, group, vctx, true, aux)
}

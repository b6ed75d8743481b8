package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

const (
	// unstrippedSuffix is the sibling-naming convention pairing a stripped
	// binary with its debug counterpart.
	unstrippedSuffix = ".debug"
	// unstrippedDirName is the subdirectory toolchains park unstripped
	// siblings in.
	unstrippedDirName = "unstripped"
	// buildIDDirName is the build-ID-indexed debug store layout:
	// .build-id/<first two hex chars>/<rest>.debug.
	buildIDDirName = ".build-id"
)

// BinaryFinalizer strips the binaries of the closure that still carry
// symbols and pairs every stripped binary with its debug counterpart,
// producing the build-ID index.
type BinaryFinalizer struct {
	Introspector ports.IntrospectorPort
	Examined     *ExaminedSet
	StripDir     string
}

func NewBinaryFinalizer(introspector ports.IntrospectorPort, examined *ExaminedSet, stripDir string) *BinaryFinalizer {
	return &BinaryFinalizer{
		Introspector: introspector,
		Examined:     examined,
		StripDir:     stripDir,
	}
}

// Finalize processes the closure in target order and returns the finalized
// manifest entries plus the build-ID → debug info index. A missing debug
// counterpart is the one tolerated defect: debug-symbol completeness is
// best-effort, everything else aborts.
func (f *BinaryFinalizer) Finalize(ctx context.Context, closure map[string]*types.BinaryEntry) ([]types.ManifestEntry, map[string]*types.ElfInfo, error) {
	targets := make([]string, 0, len(closure))
	for target := range closure {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	finalized := make([]types.ManifestEntry, 0, len(closure))
	debugIndex := map[string]*types.ElfInfo{}
	for _, target := range targets {
		bin := closure[target]
		if bin.Info.Stripped {
			if err := f.pairDebug(ctx, bin, debugIndex); err != nil {
				return nil, nil, err
			}
			finalized = append(finalized, bin.Entry)
			continue
		}
		entry, err := f.stripBinary(ctx, bin, debugIndex)
		if err != nil {
			return nil, nil, err
		}
		finalized = append(finalized, entry)
	}
	return finalized, debugIndex, nil
}

// pairDebug locates the unstripped counterpart of an already-stripped
// binary and records it in the index.
func (f *BinaryFinalizer) pairDebug(ctx context.Context, bin *types.BinaryEntry, debugIndex map[string]*types.ElfInfo) error {
	debugPath := f.findDebug(bin)
	if debugPath == "" {
		log.Ctx(ctx).Warn().
			Str("target", bin.Entry.Target).
			Str("source", bin.Entry.Source).
			Msg("no debug counterpart found for stripped binary")
		return nil
	}
	f.Examined.Add(debugPath)
	info, err := f.Introspector.Probe(debugPath)
	if err != nil || info == nil {
		log.Ctx(ctx).Warn().
			Str("target", bin.Entry.Target).
			Str("debug", debugPath).
			Msg("debug counterpart is not readable ELF, ignored")
		return nil
	}
	if bin.Info.BuildID != "" && info.BuildID != bin.Info.BuildID {
		log.Ctx(ctx).Warn().
			Str("target", bin.Entry.Target).
			Str("debug", debugPath).
			Str("build_id", bin.Info.BuildID).
			Msg("debug counterpart has a different build-id, ignored")
		return nil
	}
	return recordDebug(debugIndex, bin.Info.BuildID, info)
}

// stripBinary produces the stripped copy of an unstripped input under the
// strip directory, reusing an up-to-date previous output, and verifies the
// stripped output still is the same binary.
func (f *BinaryFinalizer) stripBinary(ctx context.Context, bin *types.BinaryEntry, debugIndex map[string]*types.ElfInfo) (types.ManifestEntry, error) {
	dest := filepath.Join(f.StripDir, filepath.FromSlash(bin.Entry.Target))

	needStrip := true
	if srcStat, err := os.Stat(bin.Entry.Source); err == nil {
		if destStat, err := os.Stat(dest); err == nil && destStat.ModTime().After(srcStat.ModTime()) {
			needStrip = false
		}
	}
	if needStrip {
		if err := f.Introspector.Strip(ctx, bin.Entry.Source, dest); err != nil {
			return types.ManifestEntry{}, err
		}
	} else {
		log.Ctx(ctx).Debug().Str("target", bin.Entry.Target).Msg("stripped output up to date, reused")
	}

	stripped, err := f.Introspector.Probe(dest)
	if err != nil {
		return types.ManifestEntry{}, err
	}
	if stripped == nil {
		return types.ManifestEntry{}, identityMismatch(fmt.Sprintf(
			"stripped output %s of %s is not ELF", dest, bin.Entry.Target))
	}
	if !bin.Info.IdentityEquals(stripped) || !stripped.Stripped {
		return types.ManifestEntry{}, identityMismatch(fmt.Sprintf(
			"stripping %s changed its identity (source %s, output %s)",
			bin.Entry.Target, bin.Entry.Source, dest))
	}

	if err := recordDebug(debugIndex, bin.Info.BuildID, bin.Info); err != nil {
		return types.ManifestEntry{}, err
	}

	entry := bin.Entry
	entry.Source = dest
	return entry, nil
}

// recordDebug stores one build-ID → debug file association. Colliding
// build-IDs must agree on the debug file; last-write-wins would hide real
// identity bugs.
func recordDebug(debugIndex map[string]*types.ElfInfo, buildID string, info *types.ElfInfo) error {
	if buildID == "" {
		return nil
	}
	if prev, ok := debugIndex[buildID]; ok {
		if prev.Filename != info.Filename {
			return identityMismatch(fmt.Sprintf(
				"build-id %s claimed by both %s and %s", buildID, prev.Filename, info.Filename))
		}
		return nil
	}
	debugIndex[buildID] = info
	return nil
}

// findDebug searches for the unstripped counterpart of a stripped binary,
// in order: the sibling naming convention, a build-ID-indexed debug store
// next to the file, an "unstripped" sibling directory walking up one path
// segment at a time, and finally an unstripped tree under the working
// directory.
func (f *BinaryFinalizer) findDebug(bin *types.BinaryEntry) string {
	source := bin.Entry.Source

	if candidate := source + unstrippedSuffix; fileExists(candidate) {
		return candidate
	}

	if id := bin.Info.BuildID; len(id) > 2 {
		for dir := filepath.Dir(source); ; dir = filepath.Dir(dir) {
			store := filepath.Join(dir, buildIDDirName)
			if dirExists(store) {
				if candidate := filepath.Join(store, id[:2], id[2:]+unstrippedSuffix); fileExists(candidate) {
					return candidate
				}
				break
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}

	rest := filepath.Base(source)
	for dir := filepath.Dir(source); ; {
		if candidate := filepath.Join(dir, unstrippedDirName, rest); fileExists(candidate) {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == "." {
			break
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}

	if candidate := filepath.Join(unstrippedDirName, filepath.FromSlash(bin.Entry.Target)); fileExists(candidate) {
		return candidate
	}
	return ""
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}

func dirExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

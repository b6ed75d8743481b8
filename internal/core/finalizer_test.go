package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"imagefin/internal/types"
)

func writeFile(t *testing.T, path string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFinalizeStripsUnstrippedBinaries(t *testing.T) {
	stripDir := t.TempDir()
	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		"out/app": {BuildID: "deadbeef01", Stripped: false},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), stripDir)

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: "out/app"},
			Info:  mustProbe(t, introspector, "out/app"),
		},
	}
	finalized, debugIndex, err := finalizer.Finalize(t.Context(), closure)
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	require.Equal(t, filepath.Join(stripDir, "bin/app"), finalized[0].Source)
	require.Equal(t, []string{"out/app"}, introspector.stripCalls)

	require.Len(t, debugIndex, 1)
	require.Equal(t, "out/app", debugIndex["deadbeef01"].Filename)
}

func TestFinalizeRejectsIdentityChange(t *testing.T) {
	introspector := &fakeIntrospector{
		files: map[string]*types.ElfInfo{
			"out/app": {BuildID: "deadbeef01", Stripped: false},
		},
		stripBuildID: "0badf00d02",
	}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: "out/app"},
			Info:  mustProbe(t, introspector, "out/app"),
		},
	}
	_, _, err := finalizer.Finalize(t.Context(), closure)
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestFinalizeReusesFreshStrippedOutput(t *testing.T) {
	stripDir := t.TempDir()
	srcDir := t.TempDir()
	source := writeFile(t, filepath.Join(srcDir, "app"), "unstripped")
	dest := writeFile(t, filepath.Join(stripDir, "bin/app"), "stripped")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(source, old, old))

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		source: {BuildID: "deadbeef01", Stripped: false},
		dest:   {BuildID: "deadbeef01", Stripped: true},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), stripDir)

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: source},
			Info:  mustProbe(t, introspector, source),
		},
	}
	finalized, _, err := finalizer.Finalize(t.Context(), closure)
	require.NoError(t, err)
	require.Empty(t, introspector.stripCalls)
	require.Equal(t, dest, finalized[0].Source)
}

func TestFinalizePairsDebugSibling(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, filepath.Join(dir, "out/app"), "stripped")
	sibling := writeFile(t, source+".debug", "debug")
	// A directory-walk candidate also exists; the sibling convention must
	// win without falling through to it.
	walk := writeFile(t, filepath.Join(dir, "out/unstripped/app"), "walk")

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		source:  {BuildID: "deadbeef01", Stripped: true},
		sibling: {BuildID: "deadbeef01", Stripped: false},
		walk:    {BuildID: "deadbeef01", Stripped: false},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: source},
			Info:  mustProbe(t, introspector, source),
		},
	}
	_, debugIndex, err := finalizer.Finalize(t.Context(), closure)
	require.NoError(t, err)
	require.Len(t, debugIndex, 1)
	require.Equal(t, sibling, debugIndex["deadbeef01"].Filename)
	require.Contains(t, finalizer.Examined.Paths(), sibling)
}

func TestFinalizePairsBuildIDStore(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, filepath.Join(dir, "toolchain/lib/libfoo.so"), "stripped")
	stored := writeFile(t, filepath.Join(dir, "toolchain/lib/.build-id/de/adbeef01.debug"), "debug")

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		source: {BuildID: "deadbeef01", Soname: "libfoo.so", Stripped: true},
		stored: {BuildID: "deadbeef01", Soname: "libfoo.so", Stripped: false},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"lib/libfoo.so": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "lib/libfoo.so", Source: source},
			Info:  mustProbe(t, introspector, source),
		},
	}
	_, debugIndex, err := finalizer.Finalize(t.Context(), closure)
	require.NoError(t, err)
	require.Equal(t, stored, debugIndex["deadbeef01"].Filename)
}

func TestFinalizeDirectoryWalk(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, filepath.Join(dir, "out/host/app"), "stripped")
	// The counterpart lives one level up, under the unstripped siblings of
	// the "host" directory.
	walked := writeFile(t, filepath.Join(dir, "out/unstripped/host/app"), "debug")

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		source: {BuildID: "deadbeef01", Stripped: true},
		walked: {BuildID: "deadbeef01", Stripped: false},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: source},
			Info:  mustProbe(t, introspector, source),
		},
	}
	_, debugIndex, err := finalizer.Finalize(t.Context(), closure)
	require.NoError(t, err)
	require.Equal(t, walked, debugIndex["deadbeef01"].Filename)
}

func TestFinalizeMissingDebugIsTolerated(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, filepath.Join(dir, "out/app"), "stripped")

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		source: {BuildID: "deadbeef01", Stripped: true},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"bin/app": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/app", Source: source},
			Info:  mustProbe(t, introspector, source),
		},
	}
	var logs bytes.Buffer
	ctx := zerolog.New(&logs).WithContext(t.Context())
	finalized, debugIndex, err := finalizer.Finalize(ctx, closure)
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	require.Empty(t, debugIndex)

	// The one tolerated defect must still be visible to the operator.
	require.Contains(t, logs.String(), "no debug counterpart found for stripped binary")
	require.Contains(t, logs.String(), "bin/app")
	require.Contains(t, logs.String(), `"level":"warn"`)
}

func TestFinalizeBuildIDCollision(t *testing.T) {
	dir := t.TempDir()
	sourceA := writeFile(t, filepath.Join(dir, "a/bin"), "stripped")
	debugA := writeFile(t, sourceA+".debug", "debug")
	sourceB := writeFile(t, filepath.Join(dir, "b/bin"), "stripped")
	debugB := writeFile(t, sourceB+".debug", "debug")

	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		sourceA: {BuildID: "deadbeef01", Stripped: true},
		debugA:  {BuildID: "deadbeef01", Stripped: false},
		sourceB: {BuildID: "deadbeef01", Stripped: true},
		debugB:  {BuildID: "deadbeef01", Stripped: false},
	}}
	finalizer := NewBinaryFinalizer(introspector, NewExaminedSet(), t.TempDir())

	closure := map[string]*types.BinaryEntry{
		"bin/a": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/a", Source: sourceA},
			Info:  mustProbe(t, introspector, sourceA),
		},
		"bin/b": {
			Entry: types.ManifestEntry{Group: types.Group(0), Target: "bin/b", Source: sourceB},
			Info:  mustProbe(t, introspector, sourceB),
		},
	}
	_, _, err := finalizer.Finalize(t.Context(), closure)
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
	require.Contains(t, err.Error(), "deadbeef01")
}

func mustProbe(t *testing.T, introspector *fakeIntrospector, path string) *types.ElfInfo {
	t.Helper()
	info, err := introspector.Probe(path)
	require.NoError(t, err)
	require.NotNil(t, info)
	return info
}

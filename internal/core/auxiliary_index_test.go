package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"imagefin/internal/types"
)

func TestBuildAuxiliaryIndexSkipsNonBinaries(t *testing.T) {
	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		"out/liba":  {Soname: "liba.so"},
		"out/notes": nil,
	}}
	examined := NewExaminedSet()

	index, err := BuildAuxiliaryIndex(t.Context(), []types.ManifestEntry{
		{Target: "lib/liba.so", Source: "out/liba"},
		{Target: "data/notes", Source: "out/notes"},
	}, introspector, examined)
	require.NoError(t, err)
	require.Len(t, index, 1)
	require.NotNil(t, index["lib/liba.so"])
	require.ElementsMatch(t, []string{"out/liba", "out/notes"}, examined.Paths())
}

func TestBuildAuxiliaryIndexTolerateExactDuplicates(t *testing.T) {
	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		"out/liba": {Soname: "liba.so"},
	}}

	index, err := BuildAuxiliaryIndex(t.Context(), []types.ManifestEntry{
		{Target: "lib/liba.so", Source: "out/liba"},
		{Target: "lib/liba.so", Source: "out/liba"},
	}, introspector, NewExaminedSet())
	require.NoError(t, err)
	require.Len(t, index, 1)
}

func TestBuildAuxiliaryIndexConflict(t *testing.T) {
	introspector := &fakeIntrospector{files: map[string]*types.ElfInfo{
		"out/liba":  {Soname: "liba.so"},
		"out/liba2": {Soname: "liba.so"},
	}}

	_, err := BuildAuxiliaryIndex(t.Context(), []types.ManifestEntry{
		{Target: "lib/liba.so", Source: "out/liba"},
		{Target: "lib/liba.so", Source: "out/liba2"},
	}, introspector, NewExaminedSet())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
}

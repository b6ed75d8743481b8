package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"imagefin/internal/core"
	"imagefin/internal/types"
)

type FinalizeRequest struct {
	// Manifests are "group:path" specs of the selected manifests; Auxiliary
	// are paths of candidate pools. Outputs are the output manifests, index
	// = group. Binaries are "group:pattern" promotions of auxiliary targets.
	Manifests   []string
	Auxiliary   []string
	Outputs     []string
	Binaries    []string
	BuildIDFile string
	Depfile     string
	StripDir    string
	Variants    string
	Objcopy     string
}

type FinalizeResult struct {
	Outputs     []string
	Binaries    int
	NonBinaries int
}

func (s Service) Finalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error) {
	if len(req.Manifests) == 0 {
		return FinalizeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one selected manifest is required")
	}
	if len(req.Outputs) == 0 {
		return FinalizeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one output manifest is required")
	}
	if strings.TrimSpace(req.StripDir) == "" {
		return FinalizeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("strip directory is required")
	}

	examined := core.NewExaminedSet()
	introspector := s.introspector(req.Objcopy)
	variants, err := s.variants(req.Variants)
	if err != nil {
		return FinalizeResult{}, err
	}
	if req.Variants != "" {
		examined.Add(req.Variants)
	}

	var selected []types.ManifestEntry
	for _, spec := range req.Manifests {
		group, path, err := parseGroupSpec(spec)
		if err != nil {
			return FinalizeResult{}, err
		}
		examined.Add(path)
		entries, err := s.Manifests.Read(path, types.Group(group))
		if err != nil {
			return FinalizeResult{}, err
		}
		selected = append(selected, entries...)
	}
	var auxiliary []types.ManifestEntry
	for _, path := range req.Auxiliary {
		examined.Add(path)
		entries, err := s.Manifests.Read(path, nil)
		if err != nil {
			return FinalizeResult{}, err
		}
		auxiliary = append(auxiliary, entries...)
	}

	auxIndex, err := core.BuildAuxiliaryIndex(ctx, auxiliary, introspector, examined)
	if err != nil {
		return FinalizeResult{}, err
	}

	builder := core.NewClosureBuilder(introspector, variants, examined)
	closure, nonbinaries, err := builder.Resolve(ctx, selected, auxIndex)
	if err != nil {
		return FinalizeResult{}, err
	}
	if err := promoteBinaries(ctx, builder, auxIndex, req.Binaries); err != nil {
		return FinalizeResult{}, err
	}

	finalizer := core.NewBinaryFinalizer(introspector, examined, req.StripDir)
	finalized, debugIndex, err := finalizer.Finalize(ctx, closure)
	if err != nil {
		return FinalizeResult{}, err
	}

	outputs := make([]types.OutputManifest, 0, len(req.Outputs))
	for _, path := range req.Outputs {
		outputs = append(outputs, types.OutputManifest{Path: path})
	}
	emitter := core.NewManifestEmitter(s.Writer, examined)
	entries := append(finalized, nonbinaries...)
	if err := emitter.Emit(ctx, outputs, entries, debugIndex, req.BuildIDFile, req.Depfile); err != nil {
		return FinalizeResult{}, err
	}

	log.Ctx(ctx).Info().
		Int("binaries", len(finalized)).
		Int("other", len(nonbinaries)).
		Int("outputs", len(outputs)).
		Msg("manifests finalized")
	return FinalizeResult{
		Outputs:     req.Outputs,
		Binaries:    len(finalized),
		NonBinaries: len(nonbinaries),
	}, nil
}

// promoteBinaries pulls auxiliary targets matching each "group:pattern"
// spec into the closure as extra roots. Patterns are doublestar globs
// matched against install targets; a pattern matching nothing is an error,
// it almost certainly means a typo in the build rules.
func promoteBinaries(ctx context.Context, builder *core.ClosureBuilder, auxIndex map[string]*types.BinaryEntry, specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	targets := make([]string, 0, len(auxIndex))
	for target := range auxIndex {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, spec := range specs {
		group, pattern, err := parseGroupSpec(spec)
		if err != nil {
			return err
		}
		if !doublestar.ValidatePattern(pattern) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid binary pattern %q", pattern))
		}
		matched := false
		for _, target := range targets {
			ok, err := doublestar.Match(pattern, target)
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("invalid binary pattern %q", pattern)).
					WithCause(err)
			}
			if !ok {
				continue
			}
			matched = true
			log.Ctx(ctx).Debug().Str("target", target).Int("group", group).Msg("auxiliary binary promoted")
			if err := builder.ResolveRoot(ctx, auxIndex[target], group, true, auxIndex); err != nil {
				return err
			}
		}
		if !matched {
			return errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("missing dependency: no auxiliary target matches pattern %q", pattern))
		}
	}
	return nil
}

// parseGroupSpec splits a "group:value" flag argument.
func parseGroupSpec(spec string) (int, string, error) {
	groupPart, value, found := strings.Cut(spec, ":")
	if !found || value == "" {
		return 0, "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("expected group:value, got %q", spec))
	}
	group, err := strconv.Atoi(groupPart)
	if err != nil || group < 0 {
		return 0, "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid group in %q", spec))
	}
	return group, value, nil
}

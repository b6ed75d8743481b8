package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

// BuildAuxiliaryIndex probes every entry of the auxiliary pool and indexes
// the ELF ones by install target. Auxiliary pools only supply binaries, so
// non-ELF entries are skipped. Two entries mapping the same target to
// different sources is fatal; the pools are assumed internally consistent.
func BuildAuxiliaryIndex(ctx context.Context, entries []types.ManifestEntry, introspector ports.IntrospectorPort, examined *ExaminedSet) (map[string]*types.BinaryEntry, error) {
	index := map[string]*types.BinaryEntry{}
	for _, entry := range entries {
		examined.Add(entry.Source)
		info, err := introspector.Probe(entry.Source)
		if err != nil {
			return nil, err
		}
		if info == nil {
			log.Ctx(ctx).Debug().Str("target", entry.Target).Msg("auxiliary entry is not ELF, skipped")
			continue
		}
		if existing, ok := index[entry.Target]; ok {
			if existing.Entry.Source != entry.Source {
				return nil, structuralConflict(fmt.Sprintf(
					"auxiliary target %q maps to both %q (%s) and %q (%s)",
					entry.Target, existing.Entry.Source, existing.Entry.Origin, entry.Source, entry.Origin))
			}
			continue
		}
		index[entry.Target] = &types.BinaryEntry{Entry: entry, Info: info}
	}
	log.Ctx(ctx).Debug().Int("binaries", len(index)).Msg("auxiliary pool indexed")
	return index, nil
}

package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

// ManifestEmitter partitions the finalized entries across the output
// manifests and writes every output artifact. It runs strictly after all
// resolution and stripping succeeded, so a fatal error earlier never leaves
// a partially written manifest behind.
type ManifestEmitter struct {
	Writer   ports.OutputWriterPort
	Examined *ExaminedSet
}

func NewManifestEmitter(writer ports.OutputWriterPort, examined *ExaminedSet) ManifestEmitter {
	return ManifestEmitter{Writer: writer, Examined: examined}
}

func (e ManifestEmitter) Emit(ctx context.Context, outputs []types.OutputManifest, entries []types.ManifestEntry, debugIndex map[string]*types.ElfInfo, buildIDFile string, depfile string) error {
	buckets := make([][]types.ManifestEntry, len(outputs))
	for _, entry := range entries {
		if entry.Group == nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("entry %s (%s) reached emission without a group", entry.Target, entry.Origin))
		}
		group := *entry.Group
		if group < 0 || group >= len(outputs) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("entry %s has group %d but only %d outputs are configured", entry.Target, group, len(outputs)))
		}
		buckets[group] = append(buckets[group], entry)
	}

	for i, bucket := range buckets {
		content, err := formatManifest(bucket)
		if err != nil {
			return err
		}
		wrote, err := e.Writer.WriteFileIfChanged(outputs[i].Path, content)
		if err != nil {
			return err
		}
		log.Ctx(ctx).Debug().
			Str("manifest", outputs[i].Path).
			Int("entries", len(bucket)).
			Bool("wrote", wrote).
			Msg("output manifest emitted")
	}

	if buildIDFile != "" {
		if _, err := e.Writer.WriteFileIfChanged(buildIDFile, formatBuildIDIndex(debugIndex)); err != nil {
			return err
		}
	}
	if depfile != "" && len(outputs) > 0 {
		content := fmt.Sprintf("%s: %s\n", outputs[0].Path, strings.Join(e.Examined.Paths(), " "))
		if _, err := e.Writer.WriteFileIfChanged(depfile, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// formatManifest serializes one output manifest, sorted by target for
// deterministic diffs, with the group routing tag dropped. The same target
// may be reachable twice through identical entries; differing sources are a
// conflict.
func formatManifest(entries []types.ManifestEntry) ([]byte, error) {
	ordered := append([]types.ManifestEntry(nil), entries...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Target < ordered[j].Target
	})
	var builder strings.Builder
	for i, entry := range ordered {
		if i > 0 && entry.Target == ordered[i-1].Target {
			if entry.Source != ordered[i-1].Source {
				return nil, structuralConflict(fmt.Sprintf(
					"output target %q maps to both %q and %q", entry.Target, ordered[i-1].Source, entry.Source))
			}
			continue
		}
		builder.WriteString(entry.Target)
		builder.WriteString("=")
		builder.WriteString(entry.Source)
		builder.WriteString("\n")
	}
	return []byte(builder.String()), nil
}

func formatBuildIDIndex(debugIndex map[string]*types.ElfInfo) []byte {
	ids := make([]string, 0, len(debugIndex))
	for id := range debugIndex {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var builder strings.Builder
	for _, id := range ids {
		builder.WriteString(id)
		builder.WriteString(" ")
		builder.WriteString(debugIndex[id].Filename)
		builder.WriteString("\n")
	}
	return []byte(builder.String())
}

package adapters

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

// ManifestFileAdapter reads build manifests: one "target=source" record per
// line, with blank lines and #-comments ignored.
type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

func (a ManifestFileAdapter) Read(path string, group *int) ([]types.ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read manifest %s", path)).
			WithCause(err)
	}

	var entries []types.ManifestEntry
	for lineno, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		origin := fmt.Sprintf("%s:%d", path, lineno+1)
		target, source, found := strings.Cut(trimmed, "=")
		if !found || target == "" || source == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("malformed manifest line at %s: %q", origin, trimmed))
		}
		entries = append(entries, types.ManifestEntry{
			Group:  group,
			Target: strings.TrimSpace(target),
			Source: strings.TrimSpace(source),
			Origin: origin,
		})
	}
	return entries, nil
}

var _ ports.ManifestReaderPort = ManifestFileAdapter{}

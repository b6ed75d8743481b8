package ports

import "imagefin/internal/types"

// ManifestReaderPort ingests one manifest file. The group, when non-nil, is
// stamped on every entry; auxiliary pools are read with a nil group.
type ManifestReaderPort interface {
	Read(path string, group *int) ([]types.ManifestEntry, error)
}

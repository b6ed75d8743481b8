package ports

import (
	"context"

	"imagefin/internal/types"
)

// IntrospectorPort probes binaries for ELF metadata and produces stripped
// copies. Probe returns (nil, nil) for a readable file that is not ELF.
type IntrospectorPort interface {
	Probe(path string) (*types.ElfInfo, error)
	Strip(ctx context.Context, src string, dest string) error
}

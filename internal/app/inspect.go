package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"imagefin/internal/types"
)

type InspectRequest struct {
	Path    string
	Objcopy string
}

type InspectResult struct {
	Info *types.ElfInfo
}

// Inspect probes one file and returns its ELF metadata.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	if strings.TrimSpace(req.Path) == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("a file path is required")
	}
	info, err := s.introspector(req.Objcopy).Probe(req.Path)
	if err != nil {
		return InspectResult{}, err
	}
	if info == nil {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s is not an ELF binary", req.Path))
	}
	return InspectResult{Info: info}, nil
}

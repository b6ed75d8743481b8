package adapters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"imagefin/internal/ports"
)

// OutputFileAdapter writes output files only when their content actually
// changed, keeping modification times stable across no-op re-runs.
type OutputFileAdapter struct{}

func NewOutputFileAdapter() OutputFileAdapter {
	return OutputFileAdapter{}
}

func (a OutputFileAdapter) WriteFileIfChanged(path string, content []byte) (bool, error) {
	if stat, err := os.Stat(path); err == nil && stat.Size() == int64(len(content)) {
		existing, err := os.ReadFile(path)
		if err == nil && bytes.Equal(existing, content) {
			return false, nil
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to create output directory for %s", path)).
				WithCause(err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	return true, nil
}

var _ ports.OutputWriterPort = OutputFileAdapter{}

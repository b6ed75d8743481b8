package adapters

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"imagefin/internal/ports"
	"imagefin/internal/shared"
	"imagefin/internal/types"
)

const DefaultObjcopy = "llvm-objcopy"

var elfMagic = []byte("\x7fELF")

// ElfFileAdapter introspects binaries with debug/elf and shells out to
// objcopy for stripping.
type ElfFileAdapter struct {
	Objcopy string
}

func NewElfFileAdapter(objcopy string) ElfFileAdapter {
	if objcopy == "" {
		objcopy = DefaultObjcopy
	}
	return ElfFileAdapter{Objcopy: objcopy}
}

func (a ElfFileAdapter) Probe(path string) (*types.ElfInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		// Only a truly absent file counts as not-found; a permission or I/O
		// failure on an existing library must not read as a missing dependency.
		code := errbuilder.CodeInternal
		if os.IsNotExist(err) {
			code = errbuilder.CodeNotFound
		}
		return nil, errbuilder.New().
			WithCode(code).
			WithMsg(fmt.Sprintf("failed to open binary %s", path)).
			WithCause(err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, nil
	}
	if !bytes.Equal(magic[:], elfMagic) {
		return nil, nil
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to parse ELF file %s", path)).
			WithCause(err)
	}

	info := &types.ElfInfo{Filename: path}

	// Both calls fail on binaries without a dynamic section; a static
	// executable simply has no soname and no needed libraries.
	if sonames, err := ef.DynString(elf.DT_SONAME); err == nil && len(sonames) > 0 {
		info.Soname = sonames[0]
	}
	if needed, err := ef.ImportedLibraries(); err == nil {
		info.Needed = needed
	}

	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to read PT_INTERP of %s", path)).
				WithCause(err)
		}
		info.Interp = string(bytes.TrimRight(data, "\x00"))
		break
	}

	info.Stripped = ef.Section(".symtab") == nil

	if note := ef.Section(".note.gnu.build-id"); note != nil {
		data, err := note.Data()
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to read build-id note of %s", path)).
				WithCause(err)
		}
		info.BuildID = parseBuildIDNote(data, ef.ByteOrder)
	}

	return info, nil
}

func (a ElfFileAdapter) Strip(ctx context.Context, src string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create stripped output directory").
			WithCause(err)
	}
	cmd := exec.CommandContext(ctx, a.Objcopy, "--strip-all", src, dest)
	if output, err := cmd.CombinedOutput(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s failed for %s", a.Objcopy, src)).
			WithCause(shared.CommandError(output, err))
	}
	return nil
}

// parseBuildIDNote extracts the descriptor of the first NT_GNU_BUILD_ID note
// in the section. Note entries are namesz/descsz/type words followed by the
// 4-byte-aligned name and descriptor.
func parseBuildIDNote(data []byte, order binary.ByteOrder) string {
	const ntGNUBuildID = 3
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		noteType := order.Uint32(data[8:12])
		data = data[12:]

		nameLen := int(align4(namesz))
		descLen := int(align4(descsz))
		if len(data) < nameLen+descLen {
			return ""
		}
		name := data[:namesz]
		desc := data[nameLen : nameLen+int(descsz)]
		data = data[nameLen+descLen:]

		if noteType == ntGNUBuildID && bytes.Equal(name, []byte("GNU\x00")) {
			return hex.EncodeToString(desc)
		}
	}
	return ""
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

var _ ports.IntrospectorPort = ElfFileAdapter{}

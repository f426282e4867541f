package builder

import (
	"debug/elf"
	"errors"
	"fmt"
	"strings"
)

// errNotStatic indicates a linux build produced a dynamically linked binary.
var errNotStatic = errors.New("binary is not statically linked")

// verifyStaticBinary checks that a linux build produced a fully static
// ELF executable: no program interpreter and no needed shared objects.
// Static binaries are what lets one wheel carry both the manylinux and
// musllinux tags.
func verifyStaticBinary(path string) error {
	file, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("inspect ELF %s: %w", path, err)
	}
	defer file.Close()

	for _, prog := range file.Progs {
		if prog.Type == elf.PT_INTERP {
			return fmt.Errorf("%w: %s requests a program interpreter", errNotStatic, path)
		}
	}

	needed, err := file.DynString(elf.DT_NEEDED)
	if err != nil {
		return fmt.Errorf("read dynamic section of %s: %w", path, err)
	}

	if len(needed) > 0 {
		return fmt.Errorf("%w: %s needs %s", errNotStatic, path, strings.Join(needed, ", "))
	}

	return nil
}

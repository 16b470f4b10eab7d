package buildid

import (
	"errors"
	"fmt"

	"github.com/muurk/fwbuildid/internal/elfimage"
)

// ErrNoBuildID is returned when a dump is requested but the image carries no
// build ID yet.
var ErrNoBuildID = errors.New("no build ID found")

// MissingGNUBuildIDError is returned when the record declares the GNU scheme
// but the image has no NT_GNU_BUILD_ID note.
type MissingGNUBuildIDError struct {
	// Symbol is the record symbol that declared the GNU scheme
	Symbol string
}

func (e *MissingGNUBuildIDError) Error() string {
	return fmt.Sprintf("couldn't locate GNU build ID but '%s' declares the GNU build ID scheme", e.Symbol)
}

// UnrecognizedTypeError is returned for a record type tag outside the known set.
type UnrecognizedTypeError struct {
	Symbol string
	Type   Type
}

func (e *UnrecognizedTypeError) Error() string {
	return fmt.Sprintf("unrecognized build ID type '%d' in '%s'", uint8(e.Type), e.Symbol)
}

// WrongSymbolSizeError is returned when a target symbol cannot hold the
// identifier written to it.
type WrongSymbolSizeError struct {
	Symbol string
	Size   uint64
	// Want is the required size; AtLeast marks it as a lower bound
	Want    uint64
	AtLeast bool
}

func (e *WrongSymbolSizeError) Error() string {
	if e.AtLeast {
		return fmt.Sprintf("symbol '%s' is %d bytes, expected at least %d", e.Symbol, e.Size, e.Want)
	}
	return fmt.Sprintf("symbol '%s' is %d bytes, expected %d", e.Symbol, e.Size, e.Want)
}

// InvalidSectionError is returned when a symbol that must be patched lives in
// a section without file content.
type InvalidSectionError struct {
	Symbol  string
	Section string
	Kind    elfimage.Kind
}

func (e *InvalidSectionError) Error() string {
	return fmt.Sprintf("symbol '%s' is in %s section %s, which has no file content to patch",
		e.Symbol, e.Kind, e.Section)
}

// IsBuildIDError reports whether err is one of the classified build ID
// failures, as opposed to an I/O or parse error.
func IsBuildIDError(err error) bool {
	var (
		symbolNotFound  *elfimage.SymbolNotFoundError
		sectionNotFound *elfimage.SectionNotFoundError
		missingGNU      *MissingGNUBuildIDError
		unrecognized    *UnrecognizedTypeError
		wrongSize       *WrongSymbolSizeError
		invalidSection  *InvalidSectionError
	)
	return errors.As(err, &symbolNotFound) ||
		errors.As(err, &sectionNotFound) ||
		errors.As(err, &missingGNU) ||
		errors.As(err, &unrecognized) ||
		errors.As(err, &wrongSize) ||
		errors.As(err, &invalidSection) ||
		errors.Is(err, ErrNoBuildID)
}

// IsSymbolNotFound reports whether err is a missing symbol.
func IsSymbolNotFound(err error) bool {
	var notFound *elfimage.SymbolNotFoundError
	return errors.As(err, &notFound)
}

// TroubleshootingHints returns suggestions for resolving err.
func TroubleshootingHints(err error) []string {
	var (
		symbolNotFound  *elfimage.SymbolNotFoundError
		sectionNotFound *elfimage.SectionNotFoundError
		missingGNU      *MissingGNUBuildIDError
		wrongSize       *WrongSymbolSizeError
		invalidSection  *InvalidSectionError
	)
	switch {
	case errors.As(err, &symbolNotFound):
		return []string{
			"Check that the SDK build ID source is compiled and linked into the image",
			"Make sure the ELF passed is the final linked image and has not been stripped",
		}
	case errors.As(err, &sectionNotFound):
		return []string{
			"The symbol table does not match the section table; the image may be stripped or corrupt",
		}
	case errors.As(err, &missingGNU):
		return []string{
			"Link with -Wl,--build-id so the NT_GNU_BUILD_ID note is emitted",
			"Or disable the GNU build ID scheme in the SDK configuration",
		}
	case errors.As(err, &wrongSize):
		return []string{
			"SHA-1 targets must be 20 bytes, CRC32 targets must be 4 bytes",
		}
	case errors.As(err, &invalidSection):
		return []string{
			"Give the symbol a non-zero initializer so it is placed in .data or .rodata instead of .bss",
		}
	case errors.Is(err, ErrNoBuildID):
		return []string{
			"Run without --dump first to add a build ID to the image",
		}
	default:
		return nil
	}
}

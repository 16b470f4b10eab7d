package elfimage

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by WriteAt on images that were not opened WithWrite.
var ErrReadOnly = errors.New("elf image opened read-only")

// SymbolNotFoundError is returned when a symbol is absent from the symbol
// table, or when the image carries no symbol table at all.
type SymbolNotFoundError struct {
	// Name is the symbol that was looked up
	Name string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("could not locate '%s' symbol in provided ELF", e.Name)
}

// SectionNotFoundError is returned when a resolved symbol's address range is
// not contained in any allocated section.
type SectionNotFoundError struct {
	// Symbol is the name of the symbol being resolved
	Symbol string
	// Start and End delimit the symbol's address range [Start, End)
	Start uint64
	End   uint64
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("could not locate a section with symbol %s (0x%x-0x%x)",
		e.Symbol, e.Start, e.End)
}

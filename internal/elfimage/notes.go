package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// NoteTypeGNUBuildID is the n_type of the note emitted by `ld --build-id`.
const NoteTypeGNUBuildID = 3

// GNUBuildID returns the descriptor of the first NT_GNU_BUILD_ID note named
// "GNU" found in any SHT_NOTE section.
func (img *Image) GNUBuildID() ([]byte, bool, error) {
	for _, sec := range img.sections {
		if sec.Type != elf.SHT_NOTE || !sec.HasContent {
			continue
		}
		data, err := img.SectionData(sec)
		if err != nil {
			return nil, false, err
		}
		desc, found, err := findNote(data, img.ByteOrder(), "GNU", NoteTypeGNUBuildID)
		if err != nil {
			return nil, false, fmt.Errorf("note section %s: %w", sec.Name, err)
		}
		if found {
			return desc, true, nil
		}
	}
	return nil, false, nil
}

// findNote walks the notes of a note section. Both the GNU linker and gold emit
// 32-bit size fields with 4-byte alignment, for ELF32 and ELF64 alike.
func findNote(data []byte, order binary.ByteOrder, name string, noteType uint32) ([]byte, bool, error) {
	for len(data) > 0 {
		if len(data) < 12 {
			return nil, false, fmt.Errorf("note too short (%d < 12)", len(data))
		}
		namesz := uint64(order.Uint32(data[0:4]))
		descsz := uint64(order.Uint32(data[4:8]))
		typ := order.Uint32(data[8:12])
		an := (namesz + 3) &^ 3
		ad := (descsz + 3) &^ 3

		if 12+an+ad > uint64(len(data)) {
			return nil, false, fmt.Errorf("note too short for header (%d < 12 + %d + %d)", len(data), an, ad)
		}

		noteName := bytes.TrimRight(data[12:12+namesz], "\x00")
		if typ == noteType && string(noteName) == name {
			desc := make([]byte, descsz)
			copy(desc, data[12+an:12+an+descsz])
			return desc, true, nil
		}
		data = data[12+an+ad:]
	}
	return nil, false, nil
}

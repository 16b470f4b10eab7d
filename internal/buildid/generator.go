package buildid

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"math"

	"github.com/muurk/fwbuildid/internal/elfimage"
)

// Window is a byte range of one section that is hashed as a placeholder
// instead of its actual content.
type Window struct {
	Section *elfimage.Section
	Offset  uint64
	Length  uint64
}

// WindowFor returns the window covering exactly sym.
func WindowFor(sym elfimage.Symbol, sec *elfimage.Section) *Window {
	return &Window{Section: sec, Offset: sym.Value - sec.Addr, Length: sym.Size}
}

// Patch is a write that has not reached the file yet. The generator hashes
// section content as if it had.
type Patch struct {
	Section *elfimage.Section
	Offset  uint64
	Data    []byte
}

// Placeholder returns the n bytes hashed in place of an exclusion window:
// 0x01 followed by zeros, matching the initializer of an unpatched build ID.
func Placeholder(n uint64) []byte {
	p := make([]byte, n)
	if n > 0 {
		p[0] = 0x01
	}
	return p
}

// GenerateSHA1 computes the SHA-1 build ID of img.
func GenerateSHA1(img *elfimage.Image, exclude *Window, pending ...Patch) ([sha1.Size]byte, error) {
	var out [sha1.Size]byte
	h := sha1.New()
	if err := digest(img, h, exclude, pending); err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

// GenerateCRC32 computes the IEEE CRC32 build ID of img.
func GenerateCRC32(img *elfimage.Image, exclude *Window, pending ...Patch) (uint32, error) {
	h := crc32.NewIEEE()
	if err := digest(img, h, exclude, pending); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// digest feeds every allocated section to h in section table order. Each
// section contributes its start address, then either its length (bss) or its
// content with the exclusion window replaced by Placeholder. Read-only
// sections without file bytes read as sh_size zeros.
func digest(img *elfimage.Image, h hash.Hash, exclude *Window, pending []Patch) error {
	order := img.ByteOrder()
	word := make([]byte, 4)

	for _, sec := range img.Sections() {
		if sec.Kind == elfimage.KindUnallocated {
			continue
		}

		if sec.Addr > math.MaxUint32 {
			return fmt.Errorf("section %s address 0x%x does not fit in 32 bits", sec.Name, sec.Addr)
		}
		order.PutUint32(word, uint32(sec.Addr))
		h.Write(word)

		if sec.Kind == elfimage.KindBss {
			if sec.Size > math.MaxUint32 {
				return fmt.Errorf("section %s size 0x%x does not fit in 32 bits", sec.Name, sec.Size)
			}
			order.PutUint32(word, uint32(sec.Size))
			h.Write(word)
			continue
		}

		data, err := sectionContent(img, sec)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.Section == sec && p.Offset+uint64(len(p.Data)) <= uint64(len(data)) {
				copy(data[p.Offset:], p.Data)
			}
		}

		if exclude == nil || exclude.Section != sec {
			h.Write(data)
			continue
		}
		if exclude.Offset+exclude.Length > uint64(len(data)) {
			return fmt.Errorf("exclusion window 0x%x+%d exceeds section %s", exclude.Offset, exclude.Length, sec.Name)
		}
		h.Write(data[:exclude.Offset])
		h.Write(Placeholder(exclude.Length))
		h.Write(data[exclude.Offset+exclude.Length:])
	}
	return nil
}

func sectionContent(img *elfimage.Image, sec *elfimage.Section) ([]byte, error) {
	if sec.HasContent {
		return img.SectionData(sec)
	}
	if sec.Size > math.MaxUint32 {
		return nil, fmt.Errorf("section %s size 0x%x does not fit in 32 bits", sec.Name, sec.Size)
	}
	return make([]byte, sec.Size), nil
}

// crcBytes encodes a CRC32 the way it is stored in the image.
func crcBytes(order binary.ByteOrder, crc uint32) []byte {
	b := make([]byte, 4)
	order.PutUint32(b, crc)
	return b
}

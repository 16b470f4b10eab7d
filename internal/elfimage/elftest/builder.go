// Package elftest builds small linked ELF32 images for tests.
//
// The images carry a section header table, a symbol table and optional note
// sections but no program headers, which is all debug/elf needs to resolve
// sections and symbols.
package elftest

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	ehdrSize = 52
	shdrSize = 40
	symSize  = 16
)

// Section describes one section of the image. Size is only used for
// SHT_NOBITS sections; other sections are sized by Data.
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint32
	Data  []byte
	Size  uint32
}

// Symbol is placed in the section named Section. Unknown section names give
// an absolute symbol.
type Symbol struct {
	Name    string
	Value   uint32
	Size    uint32
	Section string
}

// Note is a single ELF note record.
type Note struct {
	Name string
	Type uint32
	Desc []byte
}

// Builder assembles an ELF32 executable image.
type Builder struct {
	ByteOrder binary.ByteOrder
	Machine   elf.Machine
	Sections  []Section
	Symbols   []Symbol
	// NoSymtab omits .symtab and .strtab entirely
	NoSymtab bool
}

// New returns a little-endian ARM builder.
func New() *Builder {
	return &Builder{ByteOrder: binary.LittleEndian, Machine: elf.EM_ARM}
}

// Text adds an executable section.
func Text(name string, addr uint32, data []byte) Section {
	return Section{Name: name, Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: addr, Data: data}
}

// ROData adds an allocated read-only section.
func ROData(name string, addr uint32, data []byte) Section {
	return Section{Name: name, Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC, Addr: addr, Data: data}
}

// Data adds an allocated writable section.
func Data(name string, addr uint32, data []byte) Section {
	return Section{Name: name, Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: addr, Data: data}
}

// BSS adds an allocated zero-fill section.
func BSS(name string, addr, size uint32) Section {
	return Section{Name: name, Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: addr, Size: size}
}

// Comment adds an unallocated section.
func Comment(name string, data []byte) Section {
	return Section{Name: name, Type: elf.SHT_PROGBITS, Data: data}
}

// Notes adds a note section holding the given notes, encoded with order.
func Notes(name string, addr uint32, alloc bool, order binary.ByteOrder, notes ...Note) Section {
	var data []byte
	for _, n := range notes {
		nameBytes := append([]byte(n.Name), 0)
		hdr := make([]byte, 12)
		order.PutUint32(hdr[0:4], uint32(len(nameBytes)))
		order.PutUint32(hdr[4:8], uint32(len(n.Desc)))
		order.PutUint32(hdr[8:12], n.Type)
		data = append(data, hdr...)
		data = append(data, pad4(nameBytes)...)
		data = append(data, pad4(n.Desc)...)
	}
	var flags elf.SectionFlag
	if alloc {
		flags = elf.SHF_ALLOC
	}
	return Section{Name: name, Type: elf.SHT_NOTE, Flags: flags, Addr: addr, Data: data}
}

func pad4(b []byte) []byte {
	out := append([]byte(nil), b...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

type strtab struct {
	data []byte
}

func newStrtab() *strtab {
	return &strtab{data: []byte{0}}
}

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(len(s.data))
	s.data = append(s.data, name...)
	s.data = append(s.data, 0)
	return off
}

type shdr struct {
	name, typ, flags, addr, offset, size, link, info, align, entsize uint32
}

// Bytes lays out the image: ELF header, section contents in table order,
// then the section header table.
func (b *Builder) Bytes() []byte {
	order := b.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}

	sections := append([]Section(nil), b.Sections...)
	shstr := newStrtab()

	var strtabIdx int
	if !b.NoSymtab {
		// .symtab lands at len(sections)+1, .strtab right after it
		strtabIdx = len(sections) + 2
		str := newStrtab()
		syms := make([]byte, symSize)
		for _, s := range b.Symbols {
			ent := make([]byte, symSize)
			order.PutUint32(ent[0:4], str.add(s.Name))
			order.PutUint32(ent[4:8], s.Value)
			order.PutUint32(ent[8:12], s.Size)
			ent[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_OBJECT)
			order.PutUint16(ent[14:16], b.sectionIndex(s.Section))
			syms = append(syms, ent...)
		}
		sections = append(sections,
			Section{Name: ".symtab", Type: elf.SHT_SYMTAB, Data: syms},
			Section{Name: ".strtab", Type: elf.SHT_STRTAB, Data: str.data},
		)
	}
	shstrtabIdx := len(sections) + 1
	sections = append(sections, Section{Name: ".shstrtab", Type: elf.SHT_STRTAB})

	headers := make([]shdr, 0, len(sections)+1)
	headers = append(headers, shdr{})
	for _, s := range sections {
		headers = append(headers, shdr{name: shstr.add(s.Name)})
	}
	sections[len(sections)-1].Data = shstr.data

	out := make([]byte, ehdrSize)
	for i, s := range sections {
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
		h := &headers[i+1]
		h.typ = uint32(s.Type)
		h.flags = uint32(s.Flags)
		h.addr = s.Addr
		h.offset = uint32(len(out))
		h.align = 4
		if s.Type == elf.SHT_NOBITS {
			h.size = s.Size
			continue
		}
		h.size = uint32(len(s.Data))
		out = append(out, s.Data...)
		if s.Type == elf.SHT_SYMTAB {
			h.link = uint32(strtabIdx)
			h.info = 1
			h.entsize = symSize
		}
	}

	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	shoff := uint32(len(out))
	for _, h := range headers {
		ent := make([]byte, shdrSize)
		for i, v := range []uint32{h.name, h.typ, h.flags, h.addr, h.offset, h.size, h.link, h.info, h.align, h.entsize} {
			order.PutUint32(ent[i*4:], v)
		}
		out = append(out, ent...)
	}

	ident := out[:elf.EI_NIDENT]
	copy(ident, elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	if order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	} else {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	machine := b.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_ARM
	}
	hdr := out[elf.EI_NIDENT:ehdrSize]
	order.PutUint16(hdr[0:2], uint16(elf.ET_EXEC))
	order.PutUint16(hdr[2:4], uint16(machine))
	order.PutUint32(hdr[4:8], uint32(elf.EV_CURRENT))
	order.PutUint32(hdr[8:12], 0)  // e_entry
	order.PutUint32(hdr[12:16], 0) // e_phoff
	order.PutUint32(hdr[16:20], shoff)
	order.PutUint32(hdr[20:24], 0) // e_flags
	order.PutUint16(hdr[24:26], ehdrSize)
	order.PutUint16(hdr[26:28], 32) // e_phentsize
	order.PutUint16(hdr[28:30], 0)  // e_phnum
	order.PutUint16(hdr[30:32], shdrSize)
	order.PutUint16(hdr[32:34], uint16(len(headers)))
	order.PutUint16(hdr[34:36], uint16(shstrtabIdx))

	return out
}

func (b *Builder) sectionIndex(name string) uint16 {
	for i, s := range b.Sections {
		if s.Name == name {
			return uint16(i + 1)
		}
	}
	return uint16(elf.SHN_ABS)
}

// WriteFile writes the image to a fresh file under t.TempDir and returns its path.
func (b *Builder) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write ELF image: %v", err)
	}
	return path
}

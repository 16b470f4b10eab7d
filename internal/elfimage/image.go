package elfimage

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Kind is the content classification of a section.
type Kind int

const (
	KindUnallocated Kind = iota
	KindText
	KindData
	KindBss
)

// String returns a human-readable name for the section kind
func (k Kind) String() string {
	switch k {
	case KindUnallocated:
		return "unallocated"
	case KindText:
		return "text"
	case KindData:
		return "data"
	case KindBss:
		return "bss"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Classify returns the content kind of a section header.
func Classify(sh elf.SectionHeader) Kind {
	if sh.Flags&elf.SHF_ALLOC == 0 {
		return KindUnallocated
	}
	if sh.Flags&elf.SHF_EXECINSTR != 0 || sh.Flags&elf.SHF_WRITE == 0 {
		return KindText
	}
	if sh.Type == elf.SHT_NOBITS {
		return KindBss
	}
	return KindData
}

// Section is a classified view of one entry of the section header table.
type Section struct {
	Index  int
	Name   string
	Type   elf.SectionType
	Addr   uint64
	Offset uint64
	Size   uint64

	Alloc bool
	Exec  bool
	Write bool
	// HasContent is false for SHT_NOBITS sections, which occupy no file bytes
	HasContent bool

	Kind Kind

	raw *elf.Section
}

func newSection(index int, s *elf.Section) *Section {
	return &Section{
		Index:      index,
		Name:       s.Name,
		Type:       s.Type,
		Addr:       s.Addr,
		Offset:     s.Offset,
		Size:       s.Size,
		Alloc:      s.Flags&elf.SHF_ALLOC != 0,
		Exec:       s.Flags&elf.SHF_EXECINSTR != 0,
		Write:      s.Flags&elf.SHF_WRITE != 0,
		HasContent: s.Type != elf.SHT_NOBITS,
		Kind:       Classify(s.SectionHeader),
		raw:        s,
	}
}

// Contains reports whether the address range [start, end) lies inside the section.
func (s *Section) Contains(start, end uint64) bool {
	secEnd := s.Addr + s.Size
	return s.Addr <= start && start < secEnd && s.Addr <= end && end <= secEnd
}

// Symbol is a named address range taken from the symbol table.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// End returns the first address past the symbol.
func (s Symbol) End() uint64 {
	return s.Value + s.Size
}

// Option configures how an image is opened.
type Option func(*openOptions)

type openOptions struct {
	write bool
}

// WithWrite opens the underlying file read-write so the image can be patched
// through WriteAt using the same handle it was parsed from.
func WithWrite() Option {
	return func(o *openOptions) {
		o.write = true
	}
}

// Image is a parsed ELF binary.
type Image struct {
	path     string
	file     *os.File
	elf      *elf.File
	sections []*Section
	writer   io.WriterAt

	indexOnce sync.Once
	symbols   []elf.Symbol
	index     map[string][]int
	indexErr  error
}

// Open opens and parses the ELF file at path.
func Open(path string, opts ...Option) (*Image, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	flag := os.O_RDONLY
	if o.write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	img, err := newImage(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	img.path = path
	img.file = f
	if o.write {
		img.writer = f
	}
	return img, nil
}

// NewImage parses an ELF image from r. The result is read-only.
func NewImage(r io.ReaderAt) (*Image, error) {
	return newImage(r)
}

func newImage(r io.ReaderAt) (*Image, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}

	img := &Image{
		elf:      ef,
		sections: make([]*Section, 0, len(ef.Sections)),
	}
	for i, s := range ef.Sections {
		img.sections = append(img.sections, newSection(i, s))
	}
	return img, nil
}

// Close releases the file handle, if the image owns one.
func (img *Image) Close() error {
	if img.file == nil {
		return nil
	}
	err := img.file.Close()
	img.file = nil
	img.writer = nil
	return err
}

// Path returns the path the image was opened from, or "" for NewImage.
func (img *Image) Path() string {
	return img.path
}

// ByteOrder returns the byte order declared in the ELF header.
func (img *Image) ByteOrder() binary.ByteOrder {
	return img.elf.ByteOrder
}

// Class returns the ELF class (32 or 64 bit).
func (img *Image) Class() elf.Class {
	return img.elf.Class
}

// Machine returns the target architecture.
func (img *Image) Machine() elf.Machine {
	return img.elf.Machine
}

// Sections returns all sections in section header table order, including
// the null section at index 0.
func (img *Image) Sections() []*Section {
	return img.sections
}

// Writable reports whether WriteAt is available.
func (img *Image) Writable() bool {
	return img.writer != nil
}

func (img *Image) buildIndex() {
	syms, err := img.elf.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			img.index = map[string][]int{}
			return
		}
		img.indexErr = fmt.Errorf("failed to read symbol table: %w", err)
		return
	}

	img.symbols = syms
	img.index = make(map[string][]int, len(syms))
	for i, s := range syms {
		img.index[s.Name] = append(img.index[s.Name], i)
	}
}

// ResolveSymbol looks up a symbol by exact name and returns it together with
// the allocated section that contains its whole address range. When several
// symbols share the name, the first one in table order is used.
func (img *Image) ResolveSymbol(name string) (Symbol, *Section, error) {
	img.indexOnce.Do(img.buildIndex)
	if img.indexErr != nil {
		return Symbol{}, nil, img.indexErr
	}

	matches := img.index[name]
	if len(matches) == 0 {
		return Symbol{}, nil, &SymbolNotFoundError{Name: name}
	}

	es := img.symbols[matches[0]]
	sym := Symbol{Name: es.Name, Value: es.Value, Size: es.Size}

	sec := img.SectionForRange(sym.Value, sym.End())
	if sec == nil {
		return sym, nil, &SectionNotFoundError{Symbol: name, Start: sym.Value, End: sym.End()}
	}
	return sym, sec, nil
}

// SectionForRange returns the first allocated section containing [start, end),
// or nil.
func (img *Image) SectionForRange(start, end uint64) *Section {
	for _, s := range img.sections {
		if !s.Alloc {
			continue
		}
		if s.Contains(start, end) {
			return s
		}
	}
	return nil
}

// SectionData returns a fresh copy of the section's file content. Sections
// without file content return nil.
func (img *Image) SectionData(sec *Section) ([]byte, error) {
	if !sec.HasContent {
		return nil, nil
	}
	data, err := sec.raw.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read section %s: %w", sec.Name, err)
	}
	return data, nil
}

// SymbolBytes returns the bytes of sym as stored in sec. Symbols in sections
// without file content read as zeros and the file is not touched.
func (img *Image) SymbolBytes(sym Symbol, sec *Section) ([]byte, error) {
	buf := make([]byte, sym.Size)
	if !sec.HasContent || len(buf) == 0 {
		return buf, nil
	}

	n, err := sec.raw.ReadAt(buf, int64(sym.Value-sec.Addr))
	if n == len(buf) {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read symbol %s from section %s: %w", sym.Name, sec.Name, err)
}

// SymbolFileOffset returns the file offset of the first byte of sym.
func (img *Image) SymbolFileOffset(sym Symbol, sec *Section) int64 {
	return int64(sec.Offset + (sym.Value - sec.Addr))
}

// WriteAt writes p at the absolute file offset off. It is only available on
// images opened WithWrite.
func (img *Image) WriteAt(p []byte, off int64) (int, error) {
	if img.writer == nil {
		return 0, ErrReadOnly
	}
	return img.writer.WriteAt(p, off)
}

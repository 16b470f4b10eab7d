package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fwbuildid/internal/elfimage/elftest"
)

func openFirmware(t *testing.T, opts elftest.FirmwareOptions) *Image {
	t.Helper()
	img, err := NewImage(bytes.NewReader(elftest.Firmware(opts).Bytes()))
	require.NoError(t, err)
	return img
}

func sectionByName(t *testing.T, img *Image, name string) *Section {
	t.Helper()
	for _, s := range img.Sections() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("section %s not found", name)
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sh   elf.SectionHeader
		want Kind
	}{
		{
			name: "unallocated",
			sh:   elf.SectionHeader{Type: elf.SHT_PROGBITS},
			want: KindUnallocated,
		},
		{
			name: "executable",
			sh:   elf.SectionHeader{Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR},
			want: KindText,
		},
		{
			name: "read-only data counts as text",
			sh:   elf.SectionHeader{Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC},
			want: KindText,
		},
		{
			name: "writable executable",
			sh:   elf.SectionHeader{Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_EXECINSTR},
			want: KindText,
		},
		{
			name: "writable progbits",
			sh:   elf.SectionHeader{Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE},
			want: KindData,
		},
		{
			name: "writable nobits",
			sh:   elf.SectionHeader{Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE},
			want: KindBss,
		},
		{
			name: "read-only nobits",
			sh:   elf.SectionHeader{Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC},
			want: KindText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sh))
		})
	}
}

func TestSectionsKeepTableOrder(t *testing.T) {
	img := openFirmware(t, elftest.FirmwareOptions{})

	var names []string
	var kinds []Kind
	for _, s := range img.Sections() {
		if s.Alloc {
			names = append(names, s.Name)
			kinds = append(kinds, s.Kind)
		}
	}
	assert.Equal(t, []string{".text", ".rodata", ".data", ".bss"}, names)
	assert.Equal(t, []Kind{KindText, KindText, KindData, KindBss}, kinds)

	bss := sectionByName(t, img, ".bss")
	assert.False(t, bss.HasContent)
	assert.Equal(t, uint64(elftest.BSSSize), bss.Size)
	assert.Equal(t, KindUnallocated, sectionByName(t, img, ".comment").Kind)
}

func TestResolveSymbol(t *testing.T) {
	img := openFirmware(t, elftest.FirmwareOptions{ShortLen: 7})

	sym, sec, err := img.ResolveSymbol(elftest.RecordSymbol)
	require.NoError(t, err)
	assert.Equal(t, elftest.RecordSymbol, sym.Name)
	assert.Equal(t, uint64(elftest.RODataAddr), sym.Value)
	assert.Equal(t, uint64(elftest.RecordSize), sym.Size)
	assert.Equal(t, ".rodata", sec.Name)

	data, err := img.SymbolBytes(sym, sec)
	require.NoError(t, err)
	require.Len(t, data, elftest.RecordSize)
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, byte(7), data[2])

	off := img.SymbolFileOffset(sym, sec)
	assert.Equal(t, int64(sec.Offset), off)
}

func TestResolveSymbolNotFound(t *testing.T) {
	img := openFirmware(t, elftest.FirmwareOptions{OmitRecord: true})

	_, _, err := img.ResolveSymbol(elftest.RecordSymbol)
	var notFound *SymbolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, elftest.RecordSymbol, notFound.Name)
	assert.Contains(t, err.Error(), "could not locate 'g_memfault_build_id' symbol")
}

func TestResolveSymbolWithoutSymtab(t *testing.T) {
	b := elftest.New()
	b.NoSymtab = true
	b.Sections = []elftest.Section{elftest.BSS(".bss", 0x20000000, 0x40)}
	img, err := NewImage(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)

	_, _, err = img.ResolveSymbol(elftest.RecordSymbol)
	var notFound *SymbolNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestResolveSymbolSectionNotFound(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	// straddles the end of .data
	b.Symbols = append(b.Symbols, elftest.Symbol{Name: "g_straddle", Value: elftest.DataAddr + 28, Size: 8, Section: ".data"})
	img, err := NewImage(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)

	_, _, err = img.ResolveSymbol("g_straddle")
	var notFound *SectionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint64(elftest.DataAddr+28), notFound.Start)
	assert.Equal(t, uint64(elftest.DataAddr+36), notFound.End)
}

func TestResolveSymbolDuplicateNames(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	b.Symbols = append(b.Symbols, elftest.Symbol{Name: elftest.CRCSymbol, Value: elftest.BSSAddr, Size: 4, Section: ".bss"})
	img, err := NewImage(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)

	sym, sec, err := img.ResolveSymbol(elftest.CRCSymbol)
	require.NoError(t, err)
	assert.Equal(t, uint64(elftest.DataAddr+elftest.CRCOffset), sym.Value)
	assert.Equal(t, ".data", sec.Name)
}

func TestSymbolBytesInBSSAreZero(t *testing.T) {
	img := openFirmware(t, elftest.FirmwareOptions{})

	sym, sec, err := img.ResolveSymbol(elftest.BSSCRCSymbol)
	require.NoError(t, err)
	assert.Equal(t, KindBss, sec.Kind)

	data, err := img.SymbolBytes(sym, sec)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4), data)

	content, err := img.SectionData(sec)
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestSymbolBytesBigEndian(t *testing.T) {
	img := openFirmware(t, elftest.FirmwareOptions{ByteOrder: binary.BigEndian, StaleCRC: 0xdeadbeef})
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), img.ByteOrder())

	sym, sec, err := img.ResolveSymbol(elftest.CRCSymbol)
	require.NoError(t, err)
	data, err := img.SymbolBytes(sym, sec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
}

func TestGNUBuildID(t *testing.T) {
	id := bytes.Repeat([]byte{0xab}, 20)

	t.Run("present", func(t *testing.T) {
		img := openFirmware(t, elftest.FirmwareOptions{GNUBuildID: id})
		got, found, err := img.GNUBuildID()
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id, got)
	})

	t.Run("big endian", func(t *testing.T) {
		img := openFirmware(t, elftest.FirmwareOptions{GNUBuildID: id, ByteOrder: binary.BigEndian})
		got, found, err := img.GNUBuildID()
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id, got)
	})

	t.Run("absent", func(t *testing.T) {
		img := openFirmware(t, elftest.FirmwareOptions{})
		_, found, err := img.GNUBuildID()
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("skips other notes", func(t *testing.T) {
		b := elftest.Firmware(elftest.FirmwareOptions{})
		b.Sections = append(b.Sections, elftest.Notes(".note.misc", 0, false, binary.LittleEndian,
			elftest.Note{Name: "Go", Type: 4, Desc: []byte("go-build-id")},
			elftest.Note{Name: "GNU", Type: 1, Desc: []byte{0, 0, 0, 0}},
			elftest.Note{Name: "GNU", Type: NoteTypeGNUBuildID, Desc: id[:8]},
		))
		img, err := NewImage(bytes.NewReader(b.Bytes()))
		require.NoError(t, err)

		got, found, err := img.GNUBuildID()
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id[:8], got)
	})
}

func TestFindNoteTruncated(t *testing.T) {
	_, _, err := findNote([]byte{4, 0, 0, 0, 20, 0, 0, 0}, binary.LittleEndian, "GNU", NoteTypeGNUBuildID)
	assert.Error(t, err)

	hdr := []byte{4, 0, 0, 0, 20, 0, 0, 0, 3, 0, 0, 0, 'G', 'N', 'U', 0}
	_, _, err = findNote(hdr, binary.LittleEndian, "GNU", NoteTypeGNUBuildID)
	assert.Error(t, err)
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	path := elftest.Firmware(elftest.FirmwareOptions{}).WriteFile(t)

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	assert.False(t, img.Writable())
	_, err = img.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestOpenWithWrite(t *testing.T) {
	path := elftest.Firmware(elftest.FirmwareOptions{StaleCRC: 0x11111111}).WriteFile(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	img, err := Open(path, WithWrite())
	require.NoError(t, err)
	require.True(t, img.Writable())

	sym, sec, err := img.ResolveSymbol(elftest.CRCSymbol)
	require.NoError(t, err)
	_, err = img.WriteAt([]byte{0xaa, 0xbb, 0xcc, 0xdd}, img.SymbolFileOffset(sym, sec))
	require.NoError(t, err)

	got, err := img.SymbolBytes(sym, sec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, got)
	require.NoError(t, img.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/firmware.elf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

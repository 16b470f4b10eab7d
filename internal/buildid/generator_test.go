package buildid

import (
	"bytes"
	"crypto/sha1"
	"debug/elf"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fwbuildid/internal/elfimage"
	"github.com/muurk/fwbuildid/internal/elfimage/elftest"
)

// referenceDigest hashes the builder's sections directly, without going
// through elfimage, with n bytes at off in section window replaced by
// {0x01, 0, ...}.
func referenceDigest(b *elftest.Builder, h hash.Hash, window string, off, n int) []byte {
	word := make([]byte, 4)
	for _, s := range b.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		b.ByteOrder.PutUint32(word, s.Addr)
		h.Write(word)
		writable := s.Flags&elf.SHF_WRITE != 0 && s.Flags&elf.SHF_EXECINSTR == 0
		if s.Type == elf.SHT_NOBITS && writable {
			b.ByteOrder.PutUint32(word, s.Size)
			h.Write(word)
			continue
		}
		data := append([]byte(nil), s.Data...)
		if s.Type == elf.SHT_NOBITS {
			data = make([]byte, s.Size)
		}
		if s.Name == window {
			for i := off; i < off+n; i++ {
				data[i] = 0
			}
			data[off] = 0x01
		}
		h.Write(data)
	}
	return h.Sum(nil)
}

func derivedReference(b *elftest.Builder) []byte {
	return referenceDigest(b, sha1.New(), ".rodata", elftest.DerivedOff, 20)
}

func parse(t *testing.T, b *elftest.Builder) *elfimage.Image {
	t.Helper()
	img, err := elfimage.NewImage(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	return img
}

func derivedWindow(t *testing.T, img *elfimage.Image) *Window {
	t.Helper()
	sym, sec, err := img.ResolveSymbol(elftest.DerivedSymbol)
	require.NoError(t, err)
	return WindowFor(sym, sec)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, []byte{}, Placeholder(0))
	assert.Equal(t, []byte{0x01}, Placeholder(1))
	assert.Equal(t, []byte{0x01, 0, 0, 0}, Placeholder(4))
	assert.Len(t, Placeholder(20), 20)
}

func TestGenerateSHA1MatchesReference(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"little endian", binary.LittleEndian},
		{"big endian", binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := elftest.Firmware(elftest.FirmwareOptions{ByteOrder: tt.order})
			img := parse(t, b)

			got, err := GenerateSHA1(img, derivedWindow(t, img))
			require.NoError(t, err)
			assert.Equal(t, derivedReference(b), got[:])
		})
	}
}

func TestGenerateCRC32MatchesReference(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{StaleCRC: 0xdeadbeef})
	img := parse(t, b)
	sym, sec, err := img.ResolveSymbol(elftest.CRCSymbol)
	require.NoError(t, err)

	got, err := GenerateCRC32(img, WindowFor(sym, sec))
	require.NoError(t, err)

	want := referenceDigest(b, crc32.NewIEEE(), ".data", elftest.CRCOffset, 4)
	assert.Equal(t, binary.BigEndian.Uint32(want), got)
}

func TestGenerateBigEndianDiffers(t *testing.T) {
	le := parse(t, elftest.Firmware(elftest.FirmwareOptions{ByteOrder: binary.LittleEndian}))
	be := parse(t, elftest.Firmware(elftest.FirmwareOptions{ByteOrder: binary.BigEndian}))

	a, err := GenerateSHA1(le, derivedWindow(t, le))
	require.NoError(t, err)
	b, err := GenerateSHA1(be, derivedWindow(t, be))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateIgnoresWindowContent(t *testing.T) {
	zero := parse(t, elftest.Firmware(elftest.FirmwareOptions{}))
	filled := parse(t, elftest.Firmware(elftest.FirmwareOptions{Derived: bytes.Repeat([]byte{0xaa}, 20)}))

	a, err := GenerateSHA1(zero, derivedWindow(t, zero))
	require.NoError(t, err)
	b, err := GenerateSHA1(filled, derivedWindow(t, filled))
	require.NoError(t, err)
	assert.Equal(t, a, b, "window content must not affect the digest")

	a, err = GenerateSHA1(zero, nil)
	require.NoError(t, err)
	b, err = GenerateSHA1(filled, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "without a window the content is hashed")
}

func TestGenerateIgnoresUnallocatedSections(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	before := parse(t, b)

	for i := range b.Sections {
		if b.Sections[i].Name == ".comment" {
			b.Sections[i].Data = []byte("clang version 17.0.0\x00")
		}
	}
	after := parse(t, b)

	x, err := GenerateSHA1(before, derivedWindow(t, before))
	require.NoError(t, err)
	y, err := GenerateSHA1(after, derivedWindow(t, after))
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestGenerateBSSContributesSizeOnly(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	small := parse(t, b)

	for i := range b.Sections {
		if b.Sections[i].Name == ".bss" {
			b.Sections[i].Size = elftest.BSSSize * 2
		}
	}
	large := parse(t, b)

	x, err := GenerateSHA1(small, derivedWindow(t, small))
	require.NoError(t, err)
	y, err := GenerateSHA1(large, derivedWindow(t, large))
	require.NoError(t, err)
	assert.NotEqual(t, x, y)
	assert.Equal(t, derivedReference(b), y[:])
}

func TestGenerateReadOnlyNobitsHashesSize(t *testing.T) {
	withStack := func(size uint32) *elftest.Builder {
		b := elftest.Firmware(elftest.FirmwareOptions{})
		b.Sections = append(b.Sections, elftest.Section{
			Name:  ".stack_ro",
			Type:  elf.SHT_NOBITS,
			Flags: elf.SHF_ALLOC,
			Addr:  0x20008000,
			Size:  size,
		})
		return b
	}

	small, large := withStack(0x100), withStack(0x4000)
	smallImg, largeImg := parse(t, small), parse(t, large)
	x, err := GenerateSHA1(smallImg, derivedWindow(t, smallImg))
	require.NoError(t, err)
	y, err := GenerateSHA1(largeImg, derivedWindow(t, largeImg))
	require.NoError(t, err)

	assert.NotEqual(t, x, y)
	assert.Equal(t, derivedReference(small), x[:])
	assert.Equal(t, derivedReference(large), y[:])
}

func TestGenerateIsOrderSensitive(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	img := parse(t, b)
	x, err := GenerateSHA1(img, derivedWindow(t, img))
	require.NoError(t, err)

	b.Sections[0], b.Sections[1] = b.Sections[1], b.Sections[0]
	swapped := parse(t, b)
	y, err := GenerateSHA1(swapped, derivedWindow(t, swapped))
	require.NoError(t, err)

	assert.NotEqual(t, x, y)
	assert.Equal(t, derivedReference(b), y[:])
}

func TestGenerateIsDeterministic(t *testing.T) {
	img := parse(t, elftest.Firmware(elftest.FirmwareOptions{}))
	w := derivedWindow(t, img)

	x, err := GenerateSHA1(img, w)
	require.NoError(t, err)
	y, err := GenerateSHA1(img, w)
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestGeneratePendingPatch(t *testing.T) {
	none := parse(t, elftest.Firmware(elftest.FirmwareOptions{RecordType: byte(TypeNone)}))
	tagged := elftest.Firmware(elftest.FirmwareOptions{RecordType: byte(TypeMemfaultSHA1)})

	rec, err := ReadRecord(none, elftest.RecordSymbol)
	require.NoError(t, err)

	got, err := GenerateSHA1(none, derivedWindow(t, none), Patch{
		Section: rec.Section,
		Offset:  rec.Symbol.Value - rec.Section.Addr,
		Data:    []byte{byte(TypeMemfaultSHA1)},
	})
	require.NoError(t, err)
	assert.Equal(t, derivedReference(tagged), got[:])

	// the image itself is untouched
	rec, err = ReadRecord(none, elftest.RecordSymbol)
	require.NoError(t, err)
	assert.Equal(t, TypeNone, rec.Type)
}

func TestGenerateWindowOutOfRange(t *testing.T) {
	img := parse(t, elftest.Firmware(elftest.FirmwareOptions{}))
	w := derivedWindow(t, img)
	w.Length = 0x1000

	_, err := GenerateSHA1(img, w)
	assert.ErrorContains(t, err, "exclusion window")
}

func TestGenerateIgnoresBytesUnderBSS(t *testing.T) {
	b := elftest.Firmware(elftest.FirmwareOptions{})
	raw := b.Bytes()
	clean := parse(t, b)

	var bssOff uint64
	for _, s := range clean.Sections() {
		if s.Kind == elfimage.KindBss {
			bssOff = s.Offset
		}
	}
	require.NotZero(t, bssOff)

	// scribble over whatever the file holds where .bss would start
	dirty := append([]byte(nil), raw...)
	for i := bssOff; i < bssOff+16 && i < uint64(len(dirty)); i++ {
		dirty[i] ^= 0xff
	}
	scribbled, err := elfimage.NewImage(bytes.NewReader(dirty))
	require.NoError(t, err)

	x, err := GenerateSHA1(clean, derivedWindow(t, clean))
	require.NoError(t, err)
	y, err := GenerateSHA1(scribbled, derivedWindow(t, scribbled))
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

package elftest

import (
	"encoding/binary"
)

// Symbol names and addresses used by Firmware.
const (
	RecordSymbol  = "g_memfault_build_id"
	DerivedSymbol = "g_memfault_sdk_derived_build_id"
	CRCSymbol     = "g_crc_build_id"
	SHA1Symbol    = "g_sha1_build_id"
	CounterSymbol = "g_counter"
	BSSCRCSymbol  = "g_bss_crc"

	TextAddr   = 0x08000000
	RODataAddr = 0x08001000
	NoteAddr   = 0x08002000
	DataAddr   = 0x20000000
	BSSAddr    = 0x20001000
	BSSSize    = 0x100

	RecordSize   = 24
	DerivedOff   = 0x20
	CRCOffset    = 8
	SHA1Offset   = 12
	BSSCRCOffset = 0x10
)

// FirmwareOptions selects the state of the build ID record in Firmware.
type FirmwareOptions struct {
	ByteOrder binary.ByteOrder
	// RecordType is byte 0 of the record; 0 means 1 (None)
	RecordType byte
	ShortLen   byte
	// Derived is the initial content of the derived build ID; nil gives {0x01, 0, ...}
	Derived []byte
	// GNUBuildID adds an allocated .note.gnu.build-id section when non-nil
	GNUBuildID []byte
	// StaleCRC is the initial value of the CRC32 symbol in .data
	StaleCRC uint32
	// OmitRecord drops the record and derived symbols from the symbol table
	OmitRecord bool
}

// Firmware returns a builder for a small image shaped like a linked
// Cortex-M firmware: .text, .rodata holding the build ID record and derived
// digest, .data with direct-mode targets, .bss and an unallocated .comment.
func Firmware(opts FirmwareOptions) *Builder {
	order := opts.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	recordType := opts.RecordType
	if recordType == 0 {
		recordType = 1
	}

	text := make([]byte, 64)
	for i := range text {
		text[i] = byte(i*7 + 3)
	}

	rodata := make([]byte, 0x40)
	rodata[0] = recordType
	rodata[1] = 20
	rodata[2] = opts.ShortLen
	order.PutUint32(rodata[4:8], RODataAddr+DerivedOff)
	derived := opts.Derived
	if derived == nil {
		derived = make([]byte, 20)
		derived[0] = 0x01
	}
	copy(rodata[DerivedOff:DerivedOff+20], derived)
	copy(rodata[DerivedOff+20:], "fw-1.2.3")

	data := make([]byte, 32)
	order.PutUint64(data[0:8], 0x0102030405060708)
	order.PutUint32(data[CRCOffset:CRCOffset+4], opts.StaleCRC)
	data[SHA1Offset] = 0x01

	b := &Builder{ByteOrder: order}
	b.Sections = append(b.Sections,
		Text(".text", TextAddr, text),
		ROData(".rodata", RODataAddr, rodata),
	)
	if opts.GNUBuildID != nil {
		b.Sections = append(b.Sections, Notes(".note.gnu.build-id", NoteAddr, true, order,
			Note{Name: "GNU", Type: 3, Desc: opts.GNUBuildID}))
	}
	b.Sections = append(b.Sections,
		Data(".data", DataAddr, data),
		BSS(".bss", BSSAddr, BSSSize),
		Comment(".comment", []byte("GCC: (GNU Arm Embedded Toolchain) 10.3.1\x00")),
	)

	if !opts.OmitRecord {
		b.Symbols = append(b.Symbols,
			Symbol{Name: RecordSymbol, Value: RODataAddr, Size: RecordSize, Section: ".rodata"},
			Symbol{Name: DerivedSymbol, Value: RODataAddr + DerivedOff, Size: 20, Section: ".rodata"},
		)
	}
	b.Symbols = append(b.Symbols,
		Symbol{Name: "main", Value: TextAddr, Size: 16, Section: ".text"},
		Symbol{Name: CounterSymbol, Value: DataAddr, Size: 8, Section: ".data"},
		Symbol{Name: CRCSymbol, Value: DataAddr + CRCOffset, Size: 4, Section: ".data"},
		Symbol{Name: SHA1Symbol, Value: DataAddr + SHA1Offset, Size: 20, Section: ".data"},
		Symbol{Name: BSSCRCSymbol, Value: BSSAddr + BSSCRCOffset, Size: 4, Section: ".bss"},
	)
	return b
}

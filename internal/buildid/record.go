package buildid

import (
	"fmt"

	"github.com/muurk/fwbuildid/internal/elfimage"
)

// Type is the build ID scheme tag stored in byte 0 of the record.
type Type uint8

const (
	TypeNone         Type = 1
	TypeGNUSHA1      Type = 2
	TypeMemfaultSHA1 Type = 3
)

// String returns a human-readable name for the type tag
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeGNUSHA1:
		return "gnu-sha1"
	case TypeMemfaultSHA1:
		return "memfault-sha1"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Record layout, relative to the start of the record symbol.
const (
	recordTypeOffset     = 0
	recordShortLenOffset = 2
	recordMinSize        = 3
)

// Record is the on-disk build ID record.
type Record struct {
	Type Type
	// ShortLen is the configured display length; 0 when the firmware did not
	// record one
	ShortLen int

	Symbol  elfimage.Symbol
	Section *elfimage.Section
}

// ReadRecord resolves and decodes the record symbol name.
func ReadRecord(img *elfimage.Image, name string) (*Record, error) {
	sym, sec, err := img.ResolveSymbol(name)
	if err != nil {
		return nil, err
	}
	if sym.Size < recordMinSize {
		return nil, &WrongSymbolSizeError{Symbol: name, Size: sym.Size, Want: recordMinSize, AtLeast: true}
	}

	data, err := img.SymbolBytes(sym, sec)
	if err != nil {
		return nil, err
	}
	return &Record{
		Type:     Type(data[recordTypeOffset]),
		ShortLen: int(data[recordShortLenOffset]),
		Symbol:   sym,
		Section:  sec,
	}, nil
}

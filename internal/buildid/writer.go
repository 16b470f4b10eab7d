package buildid

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/fwbuildid/internal/elfimage"
	"github.com/muurk/fwbuildid/internal/logging"
)

// writer patches symbol contents through the image's own file handle. Each
// call is a single contiguous WriteAt; the file length never changes.
type writer struct {
	img    *elfimage.Image
	logger *zap.Logger
	writes int
}

func newWriter(img *elfimage.Image, logger *zap.Logger) *writer {
	return &writer{img: img, logger: logger}
}

// checkPatchable reports whether sym can be written in place.
func checkPatchable(sym elfimage.Symbol, sec *elfimage.Section) error {
	if !sec.HasContent || sec.Kind == elfimage.KindBss || sec.Kind == elfimage.KindUnallocated {
		return &InvalidSectionError{Symbol: sym.Name, Section: sec.Name, Kind: sec.Kind}
	}
	return nil
}

// writeSymbol writes data at offset bytes into sym.
func (w *writer) writeSymbol(sym elfimage.Symbol, sec *elfimage.Section, offset uint64, data []byte) error {
	if err := checkPatchable(sym, sec); err != nil {
		return err
	}
	if offset+uint64(len(data)) > sym.Size {
		return fmt.Errorf("write of %d bytes at +%d overruns symbol '%s' (%d bytes)",
			len(data), offset, sym.Name, sym.Size)
	}

	fileOffset := w.img.SymbolFileOffset(sym, sec) + int64(offset)
	w.logger.Debug("Patching symbol",
		zap.String("symbol", sym.Name),
		zap.String("section", sec.Name),
		zap.Int64("file_offset", fileOffset),
		logging.Hex("data", data),
	)

	n, err := w.img.WriteAt(data, fileOffset)
	if err != nil {
		return fmt.Errorf("failed to write symbol '%s' at offset 0x%x: %w", sym.Name, fileOffset, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write to symbol '%s': %d of %d bytes", sym.Name, n, len(data))
	}
	w.writes++
	return nil
}

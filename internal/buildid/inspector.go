package buildid

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/fwbuildid/internal/elfimage"
)

// Default symbol names emitted by the firmware SDK.
const (
	DefaultRecordSymbol  = "g_memfault_build_id"
	DefaultDerivedSymbol = "g_memfault_sdk_derived_build_id"
)

const crc32Size = 4

// Mode selects what InspectOrPatch does.
type Mode int

const (
	// ModeCheckAndUpdate reads the record and writes a derived build ID if none is present
	ModeCheckAndUpdate Mode = iota
	// ModeDumpOnly reads the record and fails with ErrNoBuildID if none is present
	ModeDumpOnly
	// ModeDirectSHA1 writes a SHA-1 build ID into a caller-named 20 byte symbol
	ModeDirectSHA1
	// ModeDirectCRC32 writes a CRC32 build ID into a caller-named 4 byte symbol
	ModeDirectCRC32
)

// String returns a human-readable name for the mode
func (m Mode) String() string {
	switch m {
	case ModeCheckAndUpdate:
		return "check-and-update"
	case ModeDumpOnly:
		return "dump"
	case ModeDirectSHA1:
		return "sha1"
	case ModeDirectCRC32:
		return "crc32"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// IdentifierKind is the kind of build ID reported in a Result.
type IdentifierKind int

const (
	KindNotFound IdentifierKind = iota
	KindGNUBuildID
	KindMemfaultSHA1
	KindSHA1
	KindCRC32
)

// String returns the name used when printing the identifier
func (k IdentifierKind) String() string {
	switch k {
	case KindNotFound:
		return "None"
	case KindGNUBuildID:
		return "GNU Build ID"
	case KindMemfaultSHA1:
		return "Memfault Build Id"
	case KindSHA1:
		return "SHA1 Build ID"
	case KindCRC32:
		return "CRC32 Build ID"
	default:
		return fmt.Sprintf("IdentifierKind(%d)", int(k))
	}
}

// Config names the record and derived symbols.
type Config struct {
	RecordSymbol  string
	DerivedSymbol string
}

// DefaultConfig returns the SDK's default symbol names.
func DefaultConfig() Config {
	return Config{
		RecordSymbol:  DefaultRecordSymbol,
		DerivedSymbol: DefaultDerivedSymbol,
	}
}

// Request is one inspect-or-patch invocation.
type Request struct {
	Mode Mode
	// Symbol is the target of the direct modes
	Symbol string
	// DryRun computes and compares in the direct modes but never writes
	DryRun bool
}

// Result describes the build ID found or written.
type Result struct {
	Kind IdentifierKind
	// Value is the identifier as stored in the image
	Value []byte
	// CRC32 is set for KindCRC32
	CRC32 uint32
	// ShortLen is the display length configured in the firmware, 0 if unknown
	ShortLen int
	// RecordType is the record tag as read, 0 for the direct modes
	RecordType Type
	// Symbol is the symbol holding the identifier
	Symbol string

	// Written is set when this call patched the image
	Written bool
	// Stale is set when the stored identifier does not match the image
	// contents and was left in place
	Stale bool
	// UnusedGNUBuildID is set when a GNU build ID note exists but the record
	// does not use it
	UnusedGNUBuildID bool
}

// Found reports whether an identifier was found or written.
func (r *Result) Found() bool {
	return r.Kind != KindNotFound
}

// Hex returns the identifier as a lowercase hex string.
func (r *Result) Hex() string {
	switch r.Kind {
	case KindNotFound:
		return ""
	case KindCRC32:
		return fmt.Sprintf("%08x", r.CRC32)
	default:
		return hex.EncodeToString(r.Value)
	}
}

// Display returns the first n characters of Hex.
func (r *Result) Display(n int) string {
	h := r.Hex()
	if n <= 0 {
		return ""
	}
	if n < len(h) {
		return h[:n]
	}
	return h
}

// Inspector coordinates the build ID schemes for one image.
type Inspector struct {
	img    *elfimage.Image
	cfg    Config
	logger *zap.Logger
	w      *writer
}

// NewInspector returns an Inspector for img. Images that will be patched
// must be opened with elfimage.WithWrite.
func NewInspector(img *elfimage.Image, cfg Config, logger *zap.Logger) *Inspector {
	if cfg.RecordSymbol == "" {
		cfg.RecordSymbol = DefaultRecordSymbol
	}
	if cfg.DerivedSymbol == "" {
		cfg.DerivedSymbol = DefaultDerivedSymbol
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{
		img:    img,
		cfg:    cfg,
		logger: logger,
		w:      newWriter(img, logger),
	}
}

// InspectOrPatch runs req against the image.
func (i *Inspector) InspectOrPatch(req Request) (*Result, error) {
	switch req.Mode {
	case ModeCheckAndUpdate:
		return i.record(false)
	case ModeDumpOnly:
		res, err := i.record(true)
		if err != nil {
			return nil, err
		}
		if !res.Found() {
			return res, ErrNoBuildID
		}
		return res, nil
	case ModeDirectSHA1:
		return i.direct(req.Symbol, KindSHA1, req.DryRun)
	case ModeDirectCRC32:
		return i.direct(req.Symbol, KindCRC32, req.DryRun)
	default:
		return nil, fmt.Errorf("unknown mode %s", req.Mode)
	}
}

// CheckOrUpdate reports the build ID, writing a derived one if the record is empty.
func (i *Inspector) CheckOrUpdate() (*Result, error) {
	return i.InspectOrPatch(Request{Mode: ModeCheckAndUpdate})
}

// Dump reports the build ID without writing.
func (i *Inspector) Dump() (*Result, error) {
	return i.InspectOrPatch(Request{Mode: ModeDumpOnly})
}

// PatchSHA1 writes a SHA-1 build ID into symbol if it differs from the stored one.
func (i *Inspector) PatchSHA1(symbol string) (*Result, error) {
	return i.InspectOrPatch(Request{Mode: ModeDirectSHA1, Symbol: symbol})
}

// PatchCRC32 writes a CRC32 build ID into symbol if it differs from the stored one.
func (i *Inspector) PatchCRC32(symbol string) (*Result, error) {
	return i.InspectOrPatch(Request{Mode: ModeDirectCRC32, Symbol: symbol})
}

// BuildInfo reports the record without writing. Classified build ID errors
// give an empty Result; only I/O and parse errors are returned.
func (i *Inspector) BuildInfo() (*Result, error) {
	res, err := i.record(true)
	if err != nil {
		if IsBuildIDError(err) {
			i.logger.Debug("No build info", zap.Error(err))
			return &Result{}, nil
		}
		return nil, err
	}
	return res, nil
}

// Writes returns the number of writes performed so far.
func (i *Inspector) Writes() int {
	return i.w.writes
}

func (i *Inspector) record(dumpOnly bool) (*Result, error) {
	rec, err := ReadRecord(i.img, i.cfg.RecordSymbol)
	if err != nil {
		return nil, err
	}

	gnuID, hasGNU, err := i.img.GNUBuildID()
	if err != nil {
		return nil, err
	}

	i.logger.Debug("Read build ID record",
		zap.String("symbol", rec.Symbol.Name),
		zap.Stringer("type", rec.Type),
		zap.Int("short_len", rec.ShortLen),
		zap.Bool("gnu_note", hasGNU),
	)

	res := &Result{
		ShortLen:   rec.ShortLen,
		RecordType: rec.Type,
		Symbol:     rec.Symbol.Name,
	}

	switch rec.Type {
	case TypeGNUSHA1:
		if !hasGNU {
			return nil, &MissingGNUBuildIDError{Symbol: rec.Symbol.Name}
		}
		res.Kind = KindGNUBuildID
		res.Value = gnuID
		return res, nil
	case TypeNone, TypeMemfaultSHA1:
	default:
		return nil, &UnrecognizedTypeError{Symbol: rec.Symbol.Name, Type: rec.Type}
	}

	dsym, dsec, err := i.img.ResolveSymbol(i.cfg.DerivedSymbol)
	if err != nil {
		return nil, err
	}
	if dsym.Size != sha1.Size {
		return nil, &WrongSymbolSizeError{Symbol: dsym.Name, Size: dsym.Size, Want: sha1.Size}
	}
	window := WindowFor(dsym, dsec)
	res.Symbol = dsym.Name

	if rec.Type == TypeMemfaultSHA1 {
		stored, err := i.img.SymbolBytes(dsym, dsec)
		if err != nil {
			return nil, err
		}
		res.Kind = KindMemfaultSHA1
		res.Value = stored
		if dumpOnly {
			return res, nil
		}

		sum, err := GenerateSHA1(i.img, window)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(sum[:], stored) {
			res.Stale = true
			i.logger.Warn("Stored build ID does not match image contents",
				zap.String("stored", hex.EncodeToString(stored)),
				zap.String("computed", hex.EncodeToString(sum[:])),
			)
		}
		return res, nil
	}

	if hasGNU {
		res.UnusedGNUBuildID = true
		i.logger.Warn("Located a GNU build ID but it is not used by the build ID record",
			zap.String("gnu_build_id", hex.EncodeToString(gnuID)),
		)
	}
	if dumpOnly {
		res.ShortLen = 0
		return res, nil
	}

	if err := checkPatchable(rec.Symbol, rec.Section); err != nil {
		return nil, err
	}
	if err := checkPatchable(dsym, dsec); err != nil {
		return nil, err
	}

	// Hash the image as it will look once the tag is written so that
	// regenerating over the patched file reproduces the stored digest.
	tag := []byte{byte(TypeMemfaultSHA1)}
	sum, err := GenerateSHA1(i.img, window, Patch{
		Section: rec.Section,
		Offset:  rec.Symbol.Value - rec.Section.Addr + recordTypeOffset,
		Data:    tag,
	})
	if err != nil {
		return nil, err
	}

	// Digest first, tag last: an interrupted run leaves the record at None.
	if err := i.w.writeSymbol(dsym, dsec, 0, sum[:]); err != nil {
		return nil, err
	}
	if err := i.w.writeSymbol(rec.Symbol, rec.Section, recordTypeOffset, tag); err != nil {
		return nil, err
	}

	res.Kind = KindMemfaultSHA1
	res.Value = sum[:]
	res.Written = true
	i.logger.Info("Added derived build ID",
		zap.String("symbol", dsym.Name),
		zap.String("build_id", res.Hex()),
	)
	return res, nil
}

func (i *Inspector) direct(name string, kind IdentifierKind, dryRun bool) (*Result, error) {
	if name == "" {
		return nil, fmt.Errorf("%s mode requires a target symbol", kind)
	}
	sym, sec, err := i.img.ResolveSymbol(name)
	if err != nil {
		return nil, err
	}

	want := uint64(sha1.Size)
	if kind == KindCRC32 {
		want = crc32Size
	}
	if sym.Size != want {
		return nil, &WrongSymbolSizeError{Symbol: name, Size: sym.Size, Want: want}
	}
	if err := checkPatchable(sym, sec); err != nil {
		return nil, err
	}

	res := &Result{Kind: kind, Symbol: name}
	window := WindowFor(sym, sec)
	if kind == KindCRC32 {
		crc, err := GenerateCRC32(i.img, window)
		if err != nil {
			return nil, err
		}
		res.CRC32 = crc
		res.Value = crcBytes(i.img.ByteOrder(), crc)
	} else {
		sum, err := GenerateSHA1(i.img, window)
		if err != nil {
			return nil, err
		}
		res.Value = sum[:]
	}

	stored, err := i.img.SymbolBytes(sym, sec)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(stored, res.Value) {
		return res, nil
	}
	if dryRun {
		res.Stale = true
		return res, nil
	}

	if err := i.w.writeSymbol(sym, sec, 0, res.Value); err != nil {
		return nil, err
	}
	res.Written = true
	i.logger.Info("Patched build ID symbol",
		zap.String("symbol", name),
		zap.Stringer("kind", kind),
		zap.String("build_id", res.Hex()),
	)
	return res, nil
}

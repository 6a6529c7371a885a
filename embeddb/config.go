package embeddb

// Package embeddb ties the storage, buffer, page, spline, secidx, and
// vardata packages together into an append-only, single-writer, paged
// time-series key-value engine, with on-disk page formats:
//
//	Data page:     [u32 pageNumber][u16 recordCount][bitmap][minData][maxData][records...]
//	Index page:    [u32 pageNumber][summary records: bitmap|minData|maxData|u32 logicalDataPage]*
//	Variable page: [u32 pageNumber][u16 firstChunkOffset][u32 prevVarPage][chunks...]
//
// Page headers and summary fields use little-endian encoding (see
// encoding/binary usage in the page package); files are not portable
// across architectures. Key and data fields are opaque to the page layer:
// the default KeyToInt64/DataToInt64/CompareKey/CompareData below treat
// them as big-endian unsigned integers, since that is the one encoding
// where plain byte-lexicographic comparison already gives correct integer
// ordering.

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ngenohydra/embeddb/bitmap"
	"github.com/ngenohydra/embeddb/storage"
)

// Config configures an Open call. Only DataFile and the widths/ring sizes
// are mandatory; everything else has a sensible default (see setDefaults).
type Config struct {
	KeySize  int
	DataSize int
	PageSize int

	BufferSizeInBlocks int
	NumSplinePoints    int
	SplineMaxError     uint32

	BitmapSize       int
	NumDataPages     uint32
	NumIndexPages    uint32
	NumVarPages      uint32
	EraseSizeInPages uint32

	// Feature flags (USE_BMAP / USE_INDEX / USE_VDATA / RESET_DATA /
	// RECORD_LEVEL_CONSISTENCY).
	UseBitmap  bool
	UseIndex   bool
	UseVarData bool
	ResetData  bool
	// RecordLevelConsistency, when set, shadows the active write page to a
	// dedicated physical slot after every Put/PutVar. DataFile must then
	// provide NumDataPages+1 physical pages (the extra one for the tail).
	RecordLevelConsistency bool

	// CompareKey/CompareData order two encoded keys or data values. Default:
	// bytes.Compare, which agrees with the default KeyToInt64/DataToInt64
	// codec below (big-endian unsigned integers order correctly under plain
	// byte-lexicographic comparison). Callers supplying their own codec for
	// signed or otherwise non-byte-lexicographic encodings should supply a
	// matching comparator too.
	CompareKey  func(a, b []byte) int
	CompareData func(a, b []byte) int

	// KeyToInt64/DataToInt64 decode a fixed-width field to the int64 the
	// spline's slope arithmetic and the default bitmap hash operate on.
	// Default: a big-endian unsigned-integer codec for widths 1, 2, 4, 8,
	// chosen to agree with the default CompareKey/CompareData
	// (bytes.Compare, which orders big-endian unsigned integers correctly
	// by byte-lexicographic comparison).
	KeyToInt64  func([]byte) int64
	DataToInt64 func([]byte) int64

	// InBitmap/BuildBitmapFromRange are the caller-supplied bitmap
	// callbacks; the engine treats them as opaque. Default (when UseBitmap
	// and unset): bitmap.HashInt64Width/bitmap.BuildRangeInt64Width over
	// DataToInt64, at the configured width of BitmapSize*8 bits.
	InBitmap             func(data []byte) uint64
	BuildBitmapFromRange func(minData, maxData []byte) uint64

	// DataFile is mandatory. IndexFile is required iff UseIndex; VarFile is
	// required iff UseVarData.
	DataFile  storage.PageFile
	IndexFile storage.PageFile
	VarFile   storage.PageFile

	Logger *zap.SugaredLogger
}

func (c *Config) setDefaults() error {
	if c.DataFile == nil {
		return errors.New("embeddb: Config.DataFile is required")
	}
	if c.NumDataPages == 0 {
		return errors.New("embeddb: Config.NumDataPages must be > 0")
	}
	if c.EraseSizeInPages == 0 {
		c.EraseSizeInPages = 1
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	if c.CompareKey == nil {
		c.CompareKey = bytes.Compare
	}
	if c.CompareData == nil {
		c.CompareData = bytes.Compare
	}
	if c.KeyToInt64 == nil {
		codec, err := defaultIntCodec(c.KeySize)
		if err != nil {
			return fmt.Errorf("embeddb: Config.KeyToInt64: %w", err)
		}
		c.KeyToInt64 = codec
	}
	if c.DataToInt64 == nil {
		codec, err := defaultIntCodec(c.DataSize)
		if err != nil && c.UseBitmap {
			return fmt.Errorf("embeddb: Config.DataToInt64: %w", err)
		}
		c.DataToInt64 = codec
	}
	if c.UseBitmap {
		if c.BitmapSize < 1 || c.BitmapSize > 8 {
			return errors.New("embeddb: Config.BitmapSize must be 1..8 when UseBitmap is set")
		}
		bits := c.BitmapSize * 8
		if c.InBitmap == nil {
			c.InBitmap = func(data []byte) uint64 { return bitmap.HashInt64Width(c.DataToInt64(data), bits) }
		}
		if c.BuildBitmapFromRange == nil {
			c.BuildBitmapFromRange = func(minData, maxData []byte) uint64 {
				return bitmap.BuildRangeInt64Width(c.DataToInt64(minData), c.DataToInt64(maxData), bits)
			}
		}
	}
	if c.UseIndex && c.NumIndexPages == 0 {
		return errors.New("embeddb: Config.NumIndexPages must be > 0 when UseIndex is set")
	}
	if c.UseVarData && c.NumVarPages == 0 {
		return errors.New("embeddb: Config.NumVarPages must be > 0 when UseVarData is set")
	}
	return nil
}

func defaultIntCodec(width int) (func([]byte) int64, error) {
	switch width {
	case 1:
		return func(b []byte) int64 { return int64(b[0]) }, nil
	case 2:
		return func(b []byte) int64 { return int64(binary.BigEndian.Uint16(b)) }, nil
	case 4:
		return func(b []byte) int64 { return int64(binary.BigEndian.Uint32(b)) }, nil
	case 8:
		return func(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }, nil
	default:
		return nil, fmt.Errorf("no default integer codec for a %d-byte field; supply one explicitly", width)
	}
}

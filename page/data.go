// Package page implements the on-disk layouts for the four page kinds the
// engine uses (data, index, variable, consistency-tail), each a thin view
// over a fixed-size []byte buffer. This plays the role a pager's Page type
// plays for a b-tree's variable-length tuples, generalized from
// packed-and-sorted arbitrary tuples to fixed-width, append-only records:
// because keys only ever arrive non-decreasing, a data page never needs a
// reverse-packed "push from the end" layout or a page split.
package page

import "encoding/binary"

const (
	dataHeaderPageNumberOffset = 0
	dataHeaderRecordCountOffset = 4
	dataHeaderFixedSize         = 6 // pageNumber(4) + recordCount(2)
)

// Layout describes the fixed geometry every page of a given kind is built
// from: the widths configured on the engine (keySize, dataSize, bitmapSize,
// pageSize) plus whether records carry an 8-byte variable-chunk address.
type Layout struct {
	PageSize  int
	KeySize   int
	DataSize  int
	BitmapSize int
	// VarAddrSize is 8 (an absolute byte offset) when variable payloads are
	// enabled, 0 otherwise.
	VarAddrSize int
}

// RecordSize is the fixed byte width of one packed record.
func (l Layout) RecordSize() int {
	return l.KeySize + l.DataSize + l.VarAddrSize
}

func (l Layout) dataHeaderSize() int {
	return dataHeaderFixedSize + l.BitmapSize + 2*l.DataSize
}

// DataPageCapacity returns how many fixed-width records fit on a data page
// of this layout, after the header.
func (l Layout) DataPageCapacity() int {
	return (l.PageSize - l.dataHeaderSize()) / l.RecordSize()
}

// DataPage is a mutable view over a data-page buffer:
//
//	[u32 pageNumber][u16 recordCount][bitmap][minData][maxData][records...]
type DataPage struct {
	Layout
	buf []byte
}

// NewDataPage wraps buf (which must be Layout.PageSize bytes) as a DataPage.
func NewDataPage(l Layout, buf []byte) *DataPage {
	return &DataPage{Layout: l, buf: buf}
}

// Bytes returns the backing buffer.
func (p *DataPage) Bytes() []byte { return p.buf }

// Reset clears the page and stamps it with the given logical page number,
// preparing it to receive new records.
func (p *DataPage) Reset(pageNumber uint32) {
	clear(p.buf)
	binary.LittleEndian.PutUint32(p.buf[dataHeaderPageNumberOffset:], pageNumber)
}

func (p *DataPage) PageNumber() uint32 {
	return binary.LittleEndian.Uint32(p.buf[dataHeaderPageNumberOffset:])
}

func (p *DataPage) RecordCount() int {
	return int(binary.LittleEndian.Uint16(p.buf[dataHeaderRecordCountOffset:]))
}

func (p *DataPage) setRecordCount(n int) {
	binary.LittleEndian.PutUint16(p.buf[dataHeaderRecordCountOffset:], uint16(n))
}

func (p *DataPage) bitmapOffset() int { return dataHeaderFixedSize }
func (p *DataPage) minDataOffset() int { return p.bitmapOffset() + p.BitmapSize }
func (p *DataPage) maxDataOffset() int { return p.minDataOffset() + p.DataSize }
func (p *DataPage) recordsOffset() int { return p.dataHeaderSize() }

// Bitmap returns the page's stored bitmap summary bytes.
func (p *DataPage) Bitmap() []byte {
	o := p.bitmapOffset()
	return p.buf[o : o+p.BitmapSize]
}

// SetBitmap overwrites the page's stored bitmap summary bytes.
func (p *DataPage) SetBitmap(b []byte) {
	copy(p.Bitmap(), b)
}

// MinData returns the page's running minimum data value bytes.
func (p *DataPage) MinData() []byte {
	o := p.minDataOffset()
	return p.buf[o : o+p.DataSize]
}

// MaxData returns the page's running maximum data value bytes.
func (p *DataPage) MaxData() []byte {
	o := p.maxDataOffset()
	return p.buf[o : o+p.DataSize]
}

func (p *DataPage) SetMinData(b []byte) { copy(p.MinData(), b) }
func (p *DataPage) SetMaxData(b []byte) { copy(p.MaxData(), b) }

// recordOffset returns the byte offset of record i.
func (p *DataPage) recordOffset(i int) int {
	return p.recordsOffset() + i*p.RecordSize()
}

// Append appends one fixed-width record (key, data, and optionally a
// var-chunk address) to the page. It returns false without modifying the
// page if the page is already full.
func (p *DataPage) Append(key, data []byte, varAddr uint64) bool {
	n := p.RecordCount()
	if n >= p.DataPageCapacity() {
		return false
	}
	o := p.recordOffset(n)
	copy(p.buf[o:o+p.KeySize], key)
	copy(p.buf[o+p.KeySize:o+p.KeySize+p.DataSize], data)
	if p.VarAddrSize > 0 {
		binary.LittleEndian.PutUint64(p.buf[o+p.KeySize+p.DataSize:], varAddr)
	}
	p.setRecordCount(n + 1)
	return true
}

// Record returns the key, data and (if enabled) var-chunk address of record
// i, 0 <= i < RecordCount().
func (p *DataPage) Record(i int) (key, data []byte, varAddr uint64) {
	o := p.recordOffset(i)
	key = p.buf[o : o+p.KeySize]
	data = p.buf[o+p.KeySize : o+p.KeySize+p.DataSize]
	if p.VarAddrSize > 0 {
		varAddr = binary.LittleEndian.Uint64(p.buf[o+p.KeySize+p.DataSize:])
	}
	return
}

// FirstKey returns the key of record 0. Callers must only call this on a
// page with RecordCount() > 0.
func (p *DataPage) FirstKey() []byte {
	k, _, _ := p.Record(0)
	return k
}

// LastKey returns the key of the last record. Callers must only call this on
// a page with RecordCount() > 0.
func (p *DataPage) LastKey() []byte {
	k, _, _ := p.Record(p.RecordCount() - 1)
	return k
}

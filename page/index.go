package page

import "encoding/binary"

const (
	indexHeaderPageNumberOffset = 0
	indexHeaderSize             = 4
)

// Summary is one per-data-page entry stored on an index page: the page's
// bitmap summary, its min/max data bytes, and the logical data page it
// describes.
type Summary struct {
	Bitmap         []byte
	MinData        []byte
	MaxData        []byte
	LogicalDataPage uint32
}

func (l Layout) summarySize() int {
	return l.BitmapSize + 2*l.DataSize + 4
}

// IndexPageCapacity returns how many summaries fit on an index page.
func (l Layout) IndexPageCapacity() int {
	return (l.PageSize - indexHeaderSize) / l.summarySize()
}

// IndexPage is a mutable view over an index-page buffer:
//
//	[u32 pageNumber][summary records: bitmap|minData|maxData|u32 logicalDataPage]*
type IndexPage struct {
	Layout
	buf   []byte
	count int
}

// NewIndexPage wraps buf as an IndexPage with the given known summary count.
// A zeroed logical-page-number field is not a reliable empty sentinel (0 is
// a valid logical page number), so the count of a page read back from
// storage must be tracked alongside it by the caller (secidx.Index does
// this) rather than recomputed from the bytes.
func NewIndexPage(l Layout, buf []byte, count int) *IndexPage {
	return &IndexPage{Layout: l, buf: buf, count: count}
}

func (p *IndexPage) Bytes() []byte { return p.buf }

// Reset clears the page and stamps its logical page number.
func (p *IndexPage) Reset(pageNumber uint32) {
	clear(p.buf)
	binary.LittleEndian.PutUint32(p.buf[indexHeaderPageNumberOffset:], pageNumber)
	p.count = 0
}

func (p *IndexPage) PageNumber() uint32 {
	return binary.LittleEndian.Uint32(p.buf[indexHeaderPageNumberOffset:])
}

func (p *IndexPage) Count() int { return p.count }

// SetCount overrides the tracked summary count, used when an IndexPage is
// reconstructed over bytes read back from storage whose count is known from
// elsewhere (the secondary index keeps it alongside the page).
func (p *IndexPage) SetCount(n int) { p.count = n }

func (p *IndexPage) summaryOffset(i int) int {
	return indexHeaderSize + i*p.summarySize()
}

// Append appends one summary. It returns false without modifying the page if
// the page is already full.
func (p *IndexPage) Append(s Summary) bool {
	if p.count >= p.IndexPageCapacity() {
		return false
	}
	o := p.summaryOffset(p.count)
	off := o
	copy(p.buf[off:off+p.BitmapSize], s.Bitmap)
	off += p.BitmapSize
	copy(p.buf[off:off+p.DataSize], s.MinData)
	off += p.DataSize
	copy(p.buf[off:off+p.DataSize], s.MaxData)
	off += p.DataSize
	binary.LittleEndian.PutUint32(p.buf[off:], s.LogicalDataPage)
	p.count++
	return true
}

// SummaryAt returns summary i, 0 <= i < Count().
func (p *IndexPage) SummaryAt(i int) Summary {
	off := p.summaryOffset(i)
	bm := p.buf[off : off+p.BitmapSize]
	off += p.BitmapSize
	minD := p.buf[off : off+p.DataSize]
	off += p.DataSize
	maxD := p.buf[off : off+p.DataSize]
	off += p.DataSize
	lp := binary.LittleEndian.Uint32(p.buf[off:])
	return Summary{Bitmap: bm, MinData: minD, MaxData: maxD, LogicalDataPage: lp}
}

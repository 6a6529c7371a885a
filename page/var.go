package page

import "encoding/binary"

const (
	varHeaderPageNumberOffset     = 0
	varHeaderFirstChunkOffsetOff  = 4
	varHeaderPrevVarPageOffset    = 6
	VarHeaderSize                 = 10 // pageNumber(4) + firstChunkOffset(2) + prevVarPage(4)
	// ChunkLengthPrefixSize is the width of a variable chunk's length prefix.
	ChunkLengthPrefixSize = 4
	// NoPrevVarPage marks a var page with no predecessor (the first page
	// ever written to the ring).
	NoPrevVarPage = 0xFFFFFFFF
	// NoChunkStart marks a page whose bytes are entirely a continuation of a
	// chunk that began on an earlier page: no chunk starts on this page.
	NoChunkStart = 0xFFFF
)

// VarPage is a mutable view over a variable-data page buffer:
//
//	[u32 pageNumber][u16 firstChunkOffset][u32 prevVarPage][chunks...]
//
// Chunks are length-prefixed byte runs that may be truncated at the page
// boundary and continued on the next page written to the ring.
type VarPage struct {
	PageSize int
	buf      []byte
}

func NewVarPage(pageSize int, buf []byte) *VarPage {
	return &VarPage{PageSize: pageSize, buf: buf}
}

func (p *VarPage) Bytes() []byte { return p.buf }

// Reset clears the page, stamps its logical page number, and records prev as
// the page's back-pointer. firstChunkOffset defaults to NoChunkStart: until
// the writer records a genuine chunk start on this page (as opposed to a
// continuation of a chunk begun on the previous page), none is known.
func (p *VarPage) Reset(pageNumber, prev uint32) {
	clear(p.buf)
	binary.LittleEndian.PutUint32(p.buf[varHeaderPageNumberOffset:], pageNumber)
	binary.LittleEndian.PutUint16(p.buf[varHeaderFirstChunkOffsetOff:], uint16(NoChunkStart))
	binary.LittleEndian.PutUint32(p.buf[varHeaderPrevVarPageOffset:], prev)
}

func (p *VarPage) PageNumber() uint32 {
	return binary.LittleEndian.Uint32(p.buf[varHeaderPageNumberOffset:])
}

func (p *VarPage) FirstChunkOffset() int {
	return int(binary.LittleEndian.Uint16(p.buf[varHeaderFirstChunkOffsetOff:]))
}

func (p *VarPage) SetFirstChunkOffset(off int) {
	binary.LittleEndian.PutUint16(p.buf[varHeaderFirstChunkOffsetOff:], uint16(off))
}

func (p *VarPage) PrevVarPage() uint32 {
	return binary.LittleEndian.Uint32(p.buf[varHeaderPrevVarPageOffset:])
}

// Payload returns the page's byte region after the header, available for
// chunk bytes.
func (p *VarPage) Payload() []byte {
	return p.buf[VarHeaderSize:]
}

// Package vardata implements the variable-length payload log (component F):
// a ring of pages holding length-prefixed chunks that may span page
// boundaries, addressed by a (logical page, offset) pair packed into the
// uint64 a data record stores alongside its fixed-width fields.
//
// The ring-of-pages-over-a-PageFile shape is the same one secidx.Index and
// the engine's data-page ring use; this package differs only in storing
// variable-width chunks instead of one fixed-width record per slot, the same
// way a key-value layer can sit variable-length encoded values over a
// pager's fixed-size pages.
package vardata

import (
	"encoding/binary"
	"errors"

	"github.com/ngenohydra/embeddb/buffer"
	"github.com/ngenohydra/embeddb/page"
	"github.com/ngenohydra/embeddb/storage"
)

// ErrVarChunkEvicted is returned when a requested address's page has been
// overwritten by ring wraparound.
var ErrVarChunkEvicted = errors.New("vardata: chunk has been evicted by ring wraparound")

// EncodeAddr packs a logical var page and a byte offset within it into the
// single uint64 a data record's var-address field stores.
func EncodeAddr(logicalPage uint32, offset int) uint64 {
	return uint64(logicalPage)<<32 | uint64(uint32(offset))
}

// DecodeAddr unpacks an address produced by EncodeAddr.
func DecodeAddr(addr uint64) (logicalPage uint32, offset int) {
	return uint32(addr >> 32), int(uint32(addr))
}

// Log is the variable-data ring: a write cursor that appends length-prefixed
// chunks (sealing and advancing pages as they fill) and a reader that
// resolves an address back into its original bytes, consulting the
// in-progress write page directly when the address has not yet been sealed
// to storage.
type Log struct {
	pageSize  int
	file      storage.PageFile
	pool      *buffer.Pool
	ringPages uint32

	writeLogical  uint32
	writePage     *page.VarPage
	writePos      int
	pageHasStart  bool
	oldestLogical uint32
}

// NewLog returns a Log over file using pool's var-write/var-read slots.
func NewLog(pageSize int, file storage.PageFile, pool *buffer.Pool, ringPages uint32) *Log {
	l := &Log{pageSize: pageSize, file: file, pool: pool, ringPages: ringPages}
	l.writePage = page.NewVarPage(pageSize, pool.Slot(buffer.RoleVarWrite))
	l.writePage.Reset(0, page.NoPrevVarPage)
	l.writePos = page.VarHeaderSize
	return l
}

// PutVar appends data as one length-prefixed chunk and returns the address
// to later retrieve it with GetVar.
func (l *Log) PutVar(data []byte) (uint64, error) {
	startLogical := l.writeLogical
	startOffset := l.writePos

	chunk := make([]byte, page.ChunkLengthPrefixSize+len(data))
	binary.LittleEndian.PutUint32(chunk, uint32(len(data)))
	copy(chunk[page.ChunkLengthPrefixSize:], data)

	if err := l.writeChunkBytes(chunk); err != nil {
		return 0, err
	}
	return EncodeAddr(startLogical, startOffset), nil
}

// writeChunkBytes copies b into the ring, sealing and opening fresh pages as
// needed. Only the very first byte written by a given call is a genuine
// chunk start; everything written afterward, even across a page seal inside
// this same call, is a continuation of that one chunk.
func (l *Log) writeChunkBytes(b []byte) error {
	remaining := b
	isStart := true
	for len(remaining) > 0 {
		if l.writePos >= l.pageSize {
			if err := l.sealAndAdvance(); err != nil {
				return err
			}
		}
		if isStart && !l.pageHasStart {
			l.writePage.SetFirstChunkOffset(l.writePos)
			l.pageHasStart = true
		}
		isStart = false

		space := l.pageSize - l.writePos
		n := len(remaining)
		if n > space {
			n = space
		}
		copy(l.writePage.Bytes()[l.writePos:l.writePos+n], remaining[:n])
		l.writePos += n
		remaining = remaining[n:]
	}
	return nil
}

func (l *Log) sealAndAdvance() error {
	physical := l.writeLogical % l.ringPages
	if err := l.file.WritePage(l.writePage.Bytes(), physical); err != nil {
		return err
	}
	prev := l.writeLogical
	l.writeLogical++
	if l.writeLogical-l.oldestLogical > l.ringPages {
		l.oldestLogical = l.writeLogical - l.ringPages
	}
	l.writePage = page.NewVarPage(l.pageSize, l.pool.Slot(buffer.RoleVarWrite))
	l.writePage.Reset(l.writeLogical, prev)
	l.writePos = page.VarHeaderSize
	l.pageHasStart = false
	return nil
}

// Flush durably writes the in-progress page's current contents to its ring
// slot without advancing past it, leaving it open for further appends.
func (l *Log) Flush() error {
	physical := l.writeLogical % l.ringPages
	return l.file.WritePage(l.writePage.Bytes(), physical)
}

// GetVar resolves addr (as returned by PutVar) back to its original bytes.
func (l *Log) GetVar(addr uint64) ([]byte, error) {
	logical, offset := DecodeAddr(addr)
	if logical < l.oldestLogical {
		return nil, ErrVarChunkEvicted
	}

	lenBuf := make([]byte, page.ChunkLengthPrefixSize)
	nextLogical, nextOffset, err := l.streamRead(logical, offset, lenBuf)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	out := make([]byte, n)
	if _, _, err := l.streamRead(nextLogical, nextOffset, out); err != nil {
		return nil, err
	}
	return out, nil
}

// streamRead fills dst starting at (logical, offset), crossing page
// boundaries forward (pages are written and therefore read back in
// increasing logical order) as needed, and returns the cursor position just
// past the last byte read.
func (l *Log) streamRead(logical uint32, offset int, dst []byte) (uint32, int, error) {
	remaining := dst
	for len(remaining) > 0 {
		buf, err := l.pageBytes(logical)
		if err != nil {
			return 0, 0, err
		}
		avail := len(buf) - offset
		if avail <= 0 {
			logical++
			offset = page.VarHeaderSize
			continue
		}
		n := len(remaining)
		if n > avail {
			n = avail
		}
		copy(remaining[:n], buf[offset:offset+n])
		remaining = remaining[n:]
		offset += n
	}
	return logical, offset, nil
}

func (l *Log) pageBytes(logical uint32) ([]byte, error) {
	if logical == l.writeLogical {
		return l.writePage.Bytes(), nil
	}
	if logical < l.oldestLogical || logical > l.writeLogical {
		return nil, ErrVarChunkEvicted
	}
	buf := l.pool.Slot(buffer.RoleVarRead)
	physical := logical % l.ringPages
	if err := l.file.ReadPage(buf, physical); err != nil {
		return nil, err
	}
	return buf, nil
}

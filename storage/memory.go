package storage

// memoryFile implements PageFile over an in-process byte buffer. It is used
// for tests and for callers that do not need data to outlive the process.
type memoryFile struct {
	pageSize int
	buf      []byte
	open     bool
}

// NewMemory returns a PageFile backed by a growable in-memory buffer. pages is
// the number of pages to preallocate up front; the buffer still grows on
// demand beyond that if a higher page number is written.
func NewMemory(pageSize int, pages uint32) PageFile {
	return &memoryFile{
		pageSize: pageSize,
		buf:      make([]byte, int(pages)*pageSize),
	}
}

func (m *memoryFile) Open(mode OpenMode) error {
	if mode == OpenTruncate {
		m.buf = m.buf[:0]
	}
	m.open = true
	return nil
}

func (m *memoryFile) Close() error {
	m.open = false
	return nil
}

func (m *memoryFile) growTo(end int) {
	for len(m.buf) < end {
		m.buf = append(m.buf, make([]byte, m.pageSize)...)
	}
}

func (m *memoryFile) ReadPage(buf []byte, pageNumber uint32) error {
	if !m.open {
		return ErrClosed
	}
	off := int(pageNumber) * m.pageSize
	m.growTo(off + len(buf))
	copy(buf, m.buf[off:off+len(buf)])
	return nil
}

func (m *memoryFile) WritePage(buf []byte, pageNumber uint32) error {
	if !m.open {
		return ErrClosed
	}
	off := int(pageNumber) * m.pageSize
	m.growTo(off + len(buf))
	copy(m.buf[off:off+len(buf)], buf)
	return nil
}

// Erase zeroes the addressed page range. Real flash requires an erase before
// rewrite; an in-memory ring does not, but zeroing keeps reads of unwritten
// pages deterministic across the ring wrap.
func (m *memoryFile) Erase(startPage, endPage uint32) error {
	if !m.open {
		return ErrClosed
	}
	start := int(startPage) * m.pageSize
	end := int(endPage) * m.pageSize
	m.growTo(end)
	for i := start; i < end; i++ {
		m.buf[i] = 0
	}
	return nil
}

func (m *memoryFile) Flush() error {
	if !m.open {
		return ErrClosed
	}
	return nil
}

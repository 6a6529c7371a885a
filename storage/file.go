package storage

import (
	"fmt"
	"io"
	"os"
)

// osFile implements PageFile over a plain *os.File, addressed by
// pageNumber*pageSize byte offsets, without journal machinery: the crash
// model here is page-atomic writes plus the optional record-level
// consistency tail, not a journaled rename-on-commit file.
type osFile struct {
	path     string
	pageSize int
	file     *os.File
}

// NewFile returns a PageFile backed by the OS file at path.
func NewFile(path string, pageSize int) PageFile {
	return &osFile{path: path, pageSize: pageSize}
}

func (f *osFile) Open(mode OpenMode) error {
	flags := os.O_RDWR | os.O_CREATE
	if mode == OpenTruncate {
		flags |= os.O_TRUNC
	}
	fl, err := os.OpenFile(f.path, flags, 0644)
	if err != nil {
		return fmt.Errorf("storage: opening %s: %w", f.path, err)
	}
	f.file = fl
	return nil
}

func (f *osFile) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

func (f *osFile) ReadPage(buf []byte, pageNumber uint32) error {
	if f.file == nil {
		return ErrClosed
	}
	n, err := f.file.ReadAt(buf, int64(pageNumber)*int64(f.pageSize))
	if err == io.EOF {
		// Bytes past the end of the file have never been written: read them
		// as zero, like the memory backend does.
		clear(buf[n:])
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: reading page %d: %w", pageNumber, err)
	}
	return nil
}

func (f *osFile) WritePage(buf []byte, pageNumber uint32) error {
	if f.file == nil {
		return ErrClosed
	}
	_, err := f.file.WriteAt(buf, int64(pageNumber)*int64(f.pageSize))
	if err != nil {
		return fmt.Errorf("storage: writing page %d: %w", pageNumber, err)
	}
	return nil
}

// Erase zeroes the addressed page range, matching the other backends. A
// regular file does not require erasing before a rewrite the way raw
// NOR/NAND flash does, but callers (and engine.maybeEraseGroup in
// particular) rely on the erased range reading back as zero.
func (f *osFile) Erase(startPage, endPage uint32) error {
	if f.file == nil {
		return ErrClosed
	}
	zero := make([]byte, int(endPage-startPage)*f.pageSize)
	_, err := f.file.WriteAt(zero, int64(startPage)*int64(f.pageSize))
	if err != nil {
		return fmt.Errorf("storage: erasing pages [%d,%d): %w", startPage, endPage, err)
	}
	return nil
}

func (f *osFile) Flush() error {
	if f.file == nil {
		return ErrClosed
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("storage: flushing %s: %w", f.path, err)
	}
	return nil
}

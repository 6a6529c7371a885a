package storage

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// mmapFile implements PageFile by memory-mapping the whole desktop file, the
// way cchirag/mint's internal/diskview.Pager maps individual pages on demand.
// Here the mapping covers the configured ring up front so ReadPage/WritePage
// are plain memory copies once the mapping exists.
type mmapFile struct {
	path     string
	pageSize int
	pages    uint32
	file     *os.File
	region   mmap.MMap
}

// NewMMap returns a PageFile that memory-maps a desktop file sized to hold
// pages pages of pageSize bytes each.
func NewMMap(path string, pageSize int, pages uint32) PageFile {
	return &mmapFile{path: path, pageSize: pageSize, pages: pages}
}

func (f *mmapFile) Open(mode OpenMode) error {
	flags := os.O_RDWR | os.O_CREATE
	if mode == OpenTruncate {
		flags |= os.O_TRUNC
	}
	fl, err := os.OpenFile(f.path, flags, 0644)
	if err != nil {
		return fmt.Errorf("storage: opening %s: %w", f.path, err)
	}
	size := int64(f.pageSize) * int64(f.pages)
	info, err := fl.Stat()
	if err != nil {
		fl.Close()
		return fmt.Errorf("storage: stat %s: %w", f.path, err)
	}
	if info.Size() < size {
		if err := fl.Truncate(size); err != nil {
			fl.Close()
			return fmt.Errorf("storage: truncating %s: %w", f.path, err)
		}
	}
	region, err := mmap.Map(fl, mmap.RDWR, 0)
	if err != nil {
		fl.Close()
		return fmt.Errorf("storage: mapping %s: %w", f.path, err)
	}
	f.file = fl
	f.region = region
	return nil
}

func (f *mmapFile) Close() error {
	if f.region != nil {
		if err := f.region.Unmap(); err != nil {
			return fmt.Errorf("storage: unmapping %s: %w", f.path, err)
		}
		f.region = nil
	}
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

func (f *mmapFile) bounds(pageNumber uint32, n int) (int, int, error) {
	if f.region == nil {
		return 0, 0, ErrClosed
	}
	start := int(pageNumber) * f.pageSize
	end := start + n
	if end > len(f.region) {
		return 0, 0, fmt.Errorf("storage: page %d out of mapped range", pageNumber)
	}
	return start, end, nil
}

func (f *mmapFile) ReadPage(buf []byte, pageNumber uint32) error {
	start, end, err := f.bounds(pageNumber, len(buf))
	if err != nil {
		return err
	}
	copy(buf, f.region[start:end])
	return nil
}

func (f *mmapFile) WritePage(buf []byte, pageNumber uint32) error {
	start, end, err := f.bounds(pageNumber, len(buf))
	if err != nil {
		return err
	}
	copy(f.region[start:end], buf)
	return nil
}

// Erase zeroes the addressed page range in the mapping.
func (f *mmapFile) Erase(startPage, endPage uint32) error {
	start, end, err := f.bounds(startPage, int(endPage-startPage)*f.pageSize)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		f.region[i] = 0
	}
	return nil
}

func (f *mmapFile) Flush() error {
	if f.region == nil {
		return ErrClosed
	}
	if err := f.region.Flush(); err != nil {
		return fmt.Errorf("storage: flushing %s: %w", f.path, err)
	}
	return nil
}

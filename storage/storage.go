// Package storage provides the file-interface capability the engine is built
// on: page-granular read, write, erase and flush over an opaque handle. This
// is the thinnest layer in the engine and is deliberately kept swappable so
// the same engine code runs against an in-memory ring, a plain desktop file,
// or a memory-mapped file.
package storage

import "errors"

// ErrClosed is returned by any operation performed on a PageFile after Close.
var ErrClosed = errors.New("storage: file is closed")

// OpenMode selects how the underlying medium is opened: a truncating
// read/write open used when ResetData is set, and a plain read/write open
// used otherwise so existing pages survive a restart.
type OpenMode int

const (
	// OpenTruncate truncates (or creates) the medium, equivalent to "w+b".
	OpenTruncate OpenMode = iota
	// OpenExisting opens the medium in place, equivalent to "r+b". The medium
	// is created if it does not already exist so a first run still succeeds.
	OpenExisting
)

// PageFile is the capability bundle every storage back-end implements. All
// addressing is in whole pages; PageFile never assumes atomicity beyond a
// single page write, and Erase may be a no-op on media that do not require
// one.
type PageFile interface {
	// Open prepares the medium for page access according to mode.
	Open(mode OpenMode) error
	// Close releases any resources held by the medium.
	Close() error
	// ReadPage reads exactly len(buf) bytes from the given page number into
	// buf. len(buf) is the configured page size.
	ReadPage(buf []byte, pageNumber uint32) error
	// WritePage writes buf to the given page number.
	WritePage(buf []byte, pageNumber uint32) error
	// Erase marks the half-open page range [startPage, endPage) as reusable.
	// Implementations that do not require erase-before-write may treat this
	// as a no-op.
	Erase(startPage, endPage uint32) error
	// Flush ensures all previously written pages are durable.
	Flush() error
}

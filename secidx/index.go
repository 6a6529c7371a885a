// Package secidx implements the secondary bitmap/min-max index (component E):
// a ring of index pages, each page holding one Summary per sealed data page,
// plus the query-path pruning logic that combines a page's bitmap with its
// min/max data bounds to decide whether the page can be skipped without
// being read.
//
// The ring-of-pages-over-a-PageFile shape mirrors the data-page ring the
// engine keeps for component C; secidx.Index exists as its own package
// because the index file is a distinct PageFile instance with its own
// logical/physical numbering, not because the ring logic itself differs.
package secidx

import (
	"errors"

	"github.com/ngenohydra/embeddb/bitmap"
	"github.com/ngenohydra/embeddb/buffer"
	"github.com/ngenohydra/embeddb/page"
	"github.com/ngenohydra/embeddb/storage"
)

// ErrEvicted is returned by Lookup when the requested data page's summary
// has been overwritten by ring wraparound and is no longer available.
var ErrEvicted = errors.New("secidx: summary for that data page has been evicted")

// Index manages the index-file ring and the in-progress index-write buffer.
// One Summary is appended per sealed data page, in the same order data pages
// are sealed, so a logical data page number can be mapped to the index page
// and slot that holds its summary by simple division, without needing a
// separate lookup table.
type Index struct {
	layout    page.Layout
	file      storage.PageFile
	pool      *buffer.Pool
	ringPages uint32
	capacity  int

	writeLogical  uint32
	writePage     *page.IndexPage
	oldestLogical uint32
}

// New returns an Index over file using pool's index-write/index-read slots.
// ringPages is the number of physical index pages the file provides;
// capacity is derived from layout and must be > 0.
func New(layout page.Layout, file storage.PageFile, pool *buffer.Pool, ringPages uint32) *Index {
	ix := &Index{
		layout:    layout,
		file:      file,
		pool:      pool,
		ringPages: ringPages,
		capacity:  layout.IndexPageCapacity(),
	}
	ix.writePage = page.NewIndexPage(layout, pool.Slot(buffer.RoleIndexWrite), 0)
	ix.writePage.Reset(0)
	return ix
}

// Resume repositions the write cursor after a reopen, given the number of
// data-page summaries known to have been appended in prior sessions
// (recovered by the engine from the sealed data-page ring, one summary per
// sealed page). It only recovers which index page is now the "current" one
// and its ring-eviction watermark; it does not recover the in-memory bytes
// of a partially-filled current index page across a restart, since those
// bytes are never durable until a full page is sealed or Flush is called.
// A reopen immediately after an unflushed partial append therefore starts
// that index page's count over at zero -- any data pages it already
// summarized remain correctly indexed once the store seals enough further
// pages to roll that index page over, but are not prunable via Lookup in
// the interim. See DESIGN.md.
func (ix *Index) Resume(summariesAppended uint32) {
	ix.writeLogical = summariesAppended / uint32(ix.capacity)
	ix.writePage.Reset(ix.writeLogical)
	if ix.writeLogical > ix.ringPages {
		ix.oldestLogical = ix.writeLogical - ix.ringPages
	}
}

// Append records the summary for the most recently sealed data page. It
// seals and writes the current index page to the ring when full, then opens
// the next one.
func (ix *Index) Append(s page.Summary) error {
	if !ix.writePage.Append(s) {
		if err := ix.sealCurrentPage(); err != nil {
			return err
		}
		if !ix.writePage.Append(s) {
			return errors.New("secidx: fresh index page rejected its first summary")
		}
	}
	return nil
}

func (ix *Index) sealCurrentPage() error {
	physical := ix.writeLogical % ix.ringPages
	if err := ix.file.WritePage(ix.writePage.Bytes(), physical); err != nil {
		return err
	}
	ix.writeLogical++
	if ix.writeLogical-ix.oldestLogical > ix.ringPages {
		ix.oldestLogical = ix.writeLogical - ix.ringPages
	}
	ix.writePage = page.NewIndexPage(ix.layout, ix.pool.Slot(buffer.RoleIndexWrite), 0)
	ix.writePage.Reset(ix.writeLogical)
	return nil
}

// Flush durably writes the in-progress index page's current contents to its
// ring slot without advancing past it, so a crash after Flush still loses at
// most the summaries appended since the last Flush. The page is left open
// for further appends.
func (ix *Index) Flush() error {
	physical := ix.writeLogical % ix.ringPages
	return ix.file.WritePage(ix.writePage.Bytes(), physical)
}

// Lookup returns the summary recorded for logicalDataPage, the logical
// sequence number of a sealed data page (assigned in the same order
// summaries are appended). ok is false only when the index ring has not
// reached that page yet (should not happen for a page the caller already
// observed as sealed); ErrEvicted is returned if the summary's index page
// has been overwritten by ring wraparound.
func (ix *Index) Lookup(logicalDataPage uint32) (s page.Summary, ok bool, err error) {
	logicalIndexPage := uint32(int(logicalDataPage) / ix.capacity)
	posInPage := int(logicalDataPage) % ix.capacity

	if logicalIndexPage == ix.writeLogical {
		if posInPage >= ix.writePage.Count() {
			return page.Summary{}, false, nil
		}
		return ix.writePage.SummaryAt(posInPage), true, nil
	}
	if logicalIndexPage > ix.writeLogical {
		return page.Summary{}, false, nil
	}
	if logicalIndexPage < ix.oldestLogical {
		return page.Summary{}, false, ErrEvicted
	}

	buf := ix.pool.Slot(buffer.RoleIndexRead)
	physical := logicalIndexPage % ix.ringPages
	if err := ix.file.ReadPage(buf, physical); err != nil {
		return page.Summary{}, false, err
	}
	// Any index page other than the in-progress one was only ever written by
	// sealCurrentPage, which seals exactly when full, so it always holds
	// capacity summaries.
	rp := page.NewIndexPage(ix.layout, buf, ix.capacity)
	if posInPage >= rp.Count() {
		return page.Summary{}, false, nil
	}
	return rp.SummaryAt(posInPage), true, nil
}

// ShouldSkip reports whether a data page described by summary s can be
// skipped for a range query over data values [lo, hi], given the query's
// precomputed bitmap (from buildBitmapFromRange) and the engine's data
// comparator. A page is skippable when its bitmap shares no set bit with the
// query bitmap, or when its [minData, maxData] range is disjoint from
// [lo, hi] -- either check alone is sound (no false negatives), and running
// both only prunes more aggressively.
func ShouldSkip(s page.Summary, queryBitmap *bitmap.Bitmap, lo, hi []byte, compareData func(a, b []byte) int) bool {
	if queryBitmap != nil {
		pageBitmap := bitmap.FromBytes(s.Bitmap)
		if !pageBitmap.Intersects(queryBitmap) {
			return true
		}
	}
	if compareData != nil {
		if compareData(s.MaxData, lo) < 0 {
			return true
		}
		if compareData(s.MinData, hi) > 0 {
			return true
		}
	}
	return false
}

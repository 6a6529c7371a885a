package embeddb

import (
	"fmt"

	"github.com/ngenohydra/embeddb/page"
)

// tailPhysicalPage is the dedicated physical slot for the consistency tail,
// one page past the end of the data ring.
func (db *DB) tailPhysicalPage() uint32 {
	return db.cfg.NumDataPages
}

// writeTail durably shadows the current (partial) write page so a crash
// between seals loses at most nothing written since the last tail write:
// the tail is a verbatim copy of the write page's bytes at the moment of
// the call. A verbatim shadow (rather than a diff or an append-only record
// log) is trivially both written and reinstated with the same DataPage
// codec already used for sealed pages; see DESIGN.md. A seal logically
// invalidates the tail (the next page's first tail write overwrites it).
func (db *DB) writeTail() error {
	if err := db.dataFile.WritePage(db.writePage.Bytes(), db.tailPhysicalPage()); err != nil {
		return fmt.Errorf("embeddb: write consistency tail: %w", err)
	}
	return nil
}

// reinstateTail is called once, during rebuildFromExisting, before any Put
// has run against the reopened store. If the tail page's stamped logical
// page number matches the write cursor just computed from the sealed ring
// (meaning it captures progress on a page that was never sealed), its bytes
// are copied directly into the write buffer and the last-inserted-key
// bookkeeping is recovered from it.
func (db *DB) reinstateTail() error {
	buf := make([]byte, db.layout.PageSize)
	if err := db.dataFile.ReadPage(buf, db.tailPhysicalPage()); err != nil {
		return fmt.Errorf("embeddb: read consistency tail: %w", err)
	}
	tail := page.NewDataPage(db.layout, buf)
	if tail.RecordCount() == 0 || tail.PageNumber() != db.writeLogical {
		return nil
	}
	copy(db.writePage.Bytes(), buf)
	db.lastKey = append(db.lastKey[:0], db.writePage.LastKey()...)
	db.haveLastKey = true
	return nil
}

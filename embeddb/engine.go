// Package embeddb is the top-level append-only time-series key-value
// storage engine: it wires the paged record store (this file and
// consistency.go) to the spline learned index, the bitmap/min-max secondary
// index, and the variable-data log.
package embeddb

import (
	"fmt"
	"sort"

	"github.com/ngenohydra/embeddb/bitmap"
	"github.com/ngenohydra/embeddb/buffer"
	"github.com/ngenohydra/embeddb/page"
	"github.com/ngenohydra/embeddb/secidx"
	"github.com/ngenohydra/embeddb/spline"
	"github.com/ngenohydra/embeddb/storage"
	"github.com/ngenohydra/embeddb/vardata"
)

// DB is one open store. At most one goroutine may call its methods at a
// time; there is no internal locking.
type DB struct {
	cfg    Config
	layout page.Layout
	pool   *buffer.Pool

	dataFile storage.PageFile
	secIndex *secidx.Index
	varLog   *vardata.Log
	spline   *spline.Spline

	writeLogical uint32 // logical number of the page currently filling
	oldestLive   uint32 // oldest logical data page still resident in the ring

	writePage   *page.DataPage
	lastKey     []byte
	haveLastKey bool
}

// Open initializes (or reopens) a store per cfg. Unless cfg.ResetData is
// set, any data already on cfg.DataFile is scanned to rebuild the spline,
// the write cursor, and (if RecordLevelConsistency is set) the in-progress
// write page from its consistency tail.
func Open(cfg Config) (*DB, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	layout := page.Layout{PageSize: cfg.PageSize, KeySize: cfg.KeySize, DataSize: cfg.DataSize}
	if cfg.UseBitmap {
		layout.BitmapSize = cfg.BitmapSize
	}
	if cfg.UseVarData {
		layout.VarAddrSize = 8
	}
	if layout.DataPageCapacity() < 1 {
		return nil, fmt.Errorf("embeddb: page size %d too small to hold even one record of this layout", cfg.PageSize)
	}

	pool, err := buffer.New(buffer.Options{
		PageSize:   cfg.PageSize,
		TotalSlots: cfg.BufferSizeInBlocks,
		UseIndex:   cfg.UseIndex,
		UseVarData: cfg.UseVarData,
	})
	if err != nil {
		return nil, err
	}

	mode := storage.OpenExisting
	if cfg.ResetData {
		mode = storage.OpenTruncate
	}
	if err := cfg.DataFile.Open(mode); err != nil {
		return nil, fmt.Errorf("embeddb: open data file: %w", err)
	}

	db := &DB{
		cfg:      cfg,
		layout:   layout,
		pool:     pool,
		dataFile: cfg.DataFile,
		spline:   spline.New(cfg.NumSplinePoints, cfg.SplineMaxError, cfg.Logger),
	}

	if cfg.UseIndex {
		if cfg.IndexFile == nil {
			return nil, fmt.Errorf("embeddb: UseIndex requires Config.IndexFile")
		}
		if err := cfg.IndexFile.Open(mode); err != nil {
			return nil, fmt.Errorf("embeddb: open index file: %w", err)
		}
		db.secIndex = secidx.New(layout, cfg.IndexFile, pool, cfg.NumIndexPages)
	}
	if cfg.UseVarData {
		if cfg.VarFile == nil {
			return nil, fmt.Errorf("embeddb: UseVarData requires Config.VarFile")
		}
		if err := cfg.VarFile.Open(mode); err != nil {
			return nil, fmt.Errorf("embeddb: open var file: %w", err)
		}
		db.varLog = vardata.NewLog(cfg.PageSize, cfg.VarFile, pool, cfg.NumVarPages)
	}

	db.writePage = page.NewDataPage(layout, pool.Slot(buffer.RoleWrite))
	db.writePage.Reset(0)

	if !cfg.ResetData {
		if err := db.rebuildFromExisting(); err != nil {
			return nil, fmt.Errorf("embeddb: rebuild from existing data: %w", err)
		}
	}
	return db, nil
}

// rebuildFromExisting scans every physical data page once, recovering the
// set of logical pages currently resident in the ring (at most
// NumDataPages of them, since older logical numbers were overwritten),
// replays them into the spline in logical order, and positions the write
// cursor just past the highest logical page found.
func (db *DB) rebuildFromExisting() error {
	type resident struct {
		logical  uint32
		firstKey []byte
		lastKey  []byte
	}
	var found []resident
	buf := db.pool.Slot(buffer.RoleRead)
	for physical := uint32(0); physical < db.cfg.NumDataPages; physical++ {
		if err := db.dataFile.ReadPage(buf, physical); err != nil {
			return fmt.Errorf("scan physical page %d: %w", physical, err)
		}
		p := page.NewDataPage(db.layout, buf)
		if p.RecordCount() == 0 {
			continue
		}
		found = append(found, resident{
			logical:  p.PageNumber(),
			firstKey: append([]byte(nil), p.FirstKey()...),
			lastKey:  append([]byte(nil), p.LastKey()...),
		})
	}
	if len(found) == 0 {
		if db.cfg.RecordLevelConsistency {
			return db.reinstateTail()
		}
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].logical < found[j].logical })

	highest := found[len(found)-1]
	db.writeLogical = highest.logical + 1
	if db.writeLogical > db.cfg.NumDataPages {
		db.oldestLive = db.writeLogical - db.cfg.NumDataPages
	}
	for _, r := range found {
		if r.logical < db.oldestLive {
			continue
		}
		db.spline.Add(db.cfg.KeyToInt64(r.firstKey), r.logical)
	}
	if db.cfg.UseIndex {
		db.secIndex.Resume(db.writeLogical)
	}

	db.lastKey = append(db.lastKey[:0], highest.lastKey...)
	db.haveLastKey = true
	db.writePage.Reset(db.writeLogical)

	if db.cfg.RecordLevelConsistency {
		if err := db.reinstateTail(); err != nil {
			return err
		}
	}
	return nil
}

// Put appends a fixed-width record with no associated variable payload.
func (db *DB) Put(key, data []byte) error {
	return db.putRecord(key, data, 0)
}

func (db *DB) putRecord(key, data []byte, varAddr uint64) error {
	if db.haveLastKey && db.cfg.CompareKey(key, db.lastKey) < 0 {
		return ErrKeyOrder
	}

	if db.writePage.RecordCount() == 0 {
		db.writePage.SetMinData(data)
		db.writePage.SetMaxData(data)
	} else {
		if db.cfg.CompareData(data, db.writePage.MinData()) < 0 {
			db.writePage.SetMinData(data)
		}
		if db.cfg.CompareData(data, db.writePage.MaxData()) > 0 {
			db.writePage.SetMaxData(data)
		}
	}
	if db.cfg.UseBitmap {
		bm := bitmap.FromBytes(db.writePage.Bitmap())
		bm.Union(bitmap.FromUint64(db.cfg.BitmapSize, db.cfg.InBitmap(data)))
		db.writePage.SetBitmap(bm.Bytes())
	}

	if !db.writePage.Append(key, data, varAddr) {
		return fmt.Errorf("embeddb: record does not fit on an empty page (page size %d too small)", db.cfg.PageSize)
	}
	db.lastKey = append(db.lastKey[:0], key...)
	db.haveLastKey = true

	if db.cfg.RecordLevelConsistency {
		if err := db.writeTail(); err != nil {
			return err
		}
	}

	if db.writePage.RecordCount() >= db.layout.DataPageCapacity() {
		return db.sealWritePage()
	}
	return nil
}

func (db *DB) sealWritePage() error {
	logical := db.writeLogical
	physical := logical % db.cfg.NumDataPages
	firstKey := append([]byte(nil), db.writePage.FirstKey()...)

	if db.cfg.UseIndex {
		s := page.Summary{
			Bitmap:          append([]byte(nil), db.writePage.Bitmap()...),
			MinData:         append([]byte(nil), db.writePage.MinData()...),
			MaxData:         append([]byte(nil), db.writePage.MaxData()...),
			LogicalDataPage: logical,
		}
		if err := db.secIndex.Append(s); err != nil {
			return fmt.Errorf("embeddb: index append: %w", err)
		}
	}

	// Erase the group physical belongs to before overwriting it: the group
	// holds data from a prior trip around the ring, and must be cleared
	// ahead of the write it is about to receive rather than after.
	if err := db.maybeEraseGroup(physical, logical); err != nil {
		return fmt.Errorf("embeddb: erase group: %w", err)
	}

	if err := db.dataFile.WritePage(db.writePage.Bytes(), physical); err != nil {
		return fmt.Errorf("embeddb: seal write page %d: %w", logical, err)
	}
	db.spline.Add(db.cfg.KeyToInt64(firstKey), logical)
	db.cfg.Logger.Debugw("data page sealed", "logicalPage", logical, "physicalPage", physical)

	db.writeLogical++
	if db.writeLogical > db.cfg.NumDataPages {
		db.oldestLive = db.writeLogical - db.cfg.NumDataPages
		db.spline.EvictBefore(db.oldestLive)
	}
	db.writePage = page.NewDataPage(db.layout, db.pool.Slot(buffer.RoleWrite))
	db.writePage.Reset(db.writeLogical)
	return nil
}

// maybeEraseGroup issues Erase for the eraseSizeInPages-aligned group
// containing physical, but only once the ring has wrapped at least once and
// only when physical marks a group boundary -- erase is a bulk, aligned
// operation on real flash, not a per-page one.
func (db *DB) maybeEraseGroup(physical, logical uint32) error {
	if logical < db.cfg.NumDataPages {
		return nil
	}
	if physical%db.cfg.EraseSizeInPages != 0 {
		return nil
	}
	end := physical + db.cfg.EraseSizeInPages
	if end > db.cfg.NumDataPages {
		end = db.cfg.NumDataPages
	}
	return db.dataFile.Erase(physical, end)
}

// Get returns the data associated with key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	data, _, err := db.find(key)
	return data, err
}

// find locates key, returning its data and its stored variable-chunk
// address (0 if the record has none).
func (db *DB) find(key []byte) (data []byte, varAddr uint64, err error) {
	if d, a, ok := searchPage(db.writePage, key, db.cfg.CompareKey); ok {
		return d, a, nil
	}
	if db.writeLogical == 0 {
		return nil, 0, ErrNotFound
	}

	hiLive := db.writeLogical - 1
	lo, hi, ok := db.spline.Predict(db.cfg.KeyToInt64(key), db.oldestLive, hiLive)
	if !ok {
		return nil, 0, ErrNotFound
	}
	if hi > hiLive {
		hi = hiLive
	}
	if lo < db.oldestLive {
		lo = db.oldestLive
	}
	if lo > hi {
		return nil, 0, ErrNotFound
	}

	buf := db.pool.Slot(buffer.RoleRead)
	readAt := func(logical uint32) (*page.DataPage, error) {
		physical := logical % db.cfg.NumDataPages
		if err := db.dataFile.ReadPage(buf, physical); err != nil {
			return nil, fmt.Errorf("embeddb: read page %d: %w", logical, err)
		}
		return page.NewDataPage(db.layout, buf), nil
	}

	n := int(hi-lo) + 1
	target := sort.Search(n, func(i int) bool {
		p, rerr := readAt(lo + uint32(i))
		if rerr != nil || p.RecordCount() == 0 || p.PageNumber() != lo+uint32(i) {
			return true
		}
		return db.cfg.CompareKey(p.FirstKey(), key) > 0
	}) - 1
	if target < 0 {
		return nil, 0, ErrNotFound
	}

	p, rerr := readAt(lo + uint32(target))
	if rerr != nil {
		return nil, 0, rerr
	}
	if d, a, ok := searchPage(p, key, db.cfg.CompareKey); ok {
		return d, a, nil
	}
	return nil, 0, ErrNotFound
}

// searchPage binary-searches p's sorted records for key.
func searchPage(p *page.DataPage, key []byte, compareKey func(a, b []byte) int) (data []byte, varAddr uint64, ok bool) {
	n := p.RecordCount()
	i := sort.Search(n, func(i int) bool {
		k, _, _ := p.Record(i)
		return compareKey(k, key) >= 0
	})
	if i >= n {
		return nil, 0, false
	}
	k, d, a := p.Record(i)
	if compareKey(k, key) != 0 {
		return nil, 0, false
	}
	return append([]byte(nil), d...), a, true
}

// PutVar appends payload as a length-prefixed chunk to the variable-data log
// and stores the chunk's address alongside the fixed (key, data) record.
func (db *DB) PutVar(key, data, payload []byte) error {
	if !db.cfg.UseVarData {
		return ErrVarDataDisabled
	}
	addr, err := db.varLog.PutVar(payload)
	if err != nil {
		return fmt.Errorf("embeddb: putvar: %w", err)
	}
	return db.putRecord(key, data, addr)
}

// GetVar returns the variable payload stored alongside key's record.
func (db *DB) GetVar(key []byte) ([]byte, error) {
	if !db.cfg.UseVarData {
		return nil, ErrVarDataDisabled
	}
	_, addr, err := db.find(key)
	if err != nil {
		return nil, err
	}
	payload, err := db.varLog.GetVar(addr)
	if err != nil {
		return nil, fmt.Errorf("embeddb: getvar: %w", err)
	}
	return payload, nil
}

// Flush seals the current write page (even if partial), writes any dirty
// index page, flushes the variable-data writer, and flushes every open
// backend. It is idempotent: calling it twice in a row with no intervening
// Put seals nothing new; the second call only rewrites the same in-progress
// index and variable-data pages and flushes the backends again.
func (db *DB) Flush() error {
	if db.writePage.RecordCount() > 0 {
		if err := db.sealWritePage(); err != nil {
			return err
		}
	}
	if db.cfg.UseIndex {
		if err := db.secIndex.Flush(); err != nil {
			return fmt.Errorf("embeddb: flush index: %w", err)
		}
	}
	if db.cfg.UseVarData {
		if err := db.varLog.Flush(); err != nil {
			return fmt.Errorf("embeddb: flush var log: %w", err)
		}
	}
	if err := db.dataFile.Flush(); err != nil {
		return fmt.Errorf("embeddb: flush data file: %w", err)
	}
	if db.cfg.UseIndex {
		if err := db.cfg.IndexFile.Flush(); err != nil {
			return fmt.Errorf("embeddb: flush index file: %w", err)
		}
	}
	if db.cfg.UseVarData {
		if err := db.cfg.VarFile.Flush(); err != nil {
			return fmt.Errorf("embeddb: flush var file: %w", err)
		}
	}
	return nil
}

// Close flushes and releases every open backend.
func (db *DB) Close() error {
	if err := db.Flush(); err != nil {
		return err
	}
	if err := db.dataFile.Close(); err != nil {
		return fmt.Errorf("embeddb: close data file: %w", err)
	}
	if db.cfg.UseIndex {
		if err := db.cfg.IndexFile.Close(); err != nil {
			return fmt.Errorf("embeddb: close index file: %w", err)
		}
	}
	if db.cfg.UseVarData {
		if err := db.cfg.VarFile.Close(); err != nil {
			return fmt.Errorf("embeddb: close var file: %w", err)
		}
	}
	return nil
}

package embeddb

import (
	"fmt"

	"github.com/ngenohydra/embeddb/bitmap"
	"github.com/ngenohydra/embeddb/buffer"
	"github.com/ngenohydra/embeddb/page"
	"github.com/ngenohydra/embeddb/secidx"
)

// RangeQuery bounds a range scan. Any field left nil is unbounded on that
// side.
type RangeQuery struct {
	MinKey, MaxKey   []byte
	MinData, MaxData []byte
}

// Iterator yields records in ascending key order, skipping data pages the
// bitmap/min-max index proves cannot match, and filtering the rest by key
// and data range.
type Iterator struct {
	db          *DB
	query       RangeQuery
	queryBitmap *bitmap.Bitmap

	logical  uint32
	hiLive   uint32
	curPage  *page.DataPage
	curIndex int
	done     bool
}

// Iterate starts a range scan. The starting page is located via the spline
// when MinKey is given, same as Get's lookup path; otherwise the scan
// starts at the oldest still-live page.
func (db *DB) Iterate(q RangeQuery) *Iterator {
	it := &Iterator{db: db, query: q, logical: db.oldestLive, hiLive: db.writeLogical}
	if q.MinKey != nil && db.writeLogical > 0 {
		if lo, _, ok := db.spline.Predict(db.cfg.KeyToInt64(q.MinKey), db.oldestLive, db.writeLogical-1); ok && lo > it.logical {
			it.logical = lo
		}
	}
	if db.cfg.UseBitmap && q.MinData != nil && q.MaxData != nil && db.cfg.BuildBitmapFromRange != nil {
		it.queryBitmap = bitmap.FromUint64(db.cfg.BitmapSize, db.cfg.BuildBitmapFromRange(q.MinData, q.MaxData))
	}
	return it
}

// Next returns the next matching record, or ok=false when the scan is
// exhausted.
func (it *Iterator) Next() (key, data []byte, ok bool, err error) {
	for {
		if it.done {
			return nil, nil, false, nil
		}
		if it.curPage == nil {
			if err := it.advance(); err != nil {
				return nil, nil, false, err
			}
			if it.done {
				return nil, nil, false, nil
			}
		}
		if it.curIndex >= it.curPage.RecordCount() {
			it.curPage = nil
			it.logical++
			continue
		}
		k, d, _ := it.curPage.Record(it.curIndex)
		it.curIndex++

		if it.query.MaxKey != nil && it.db.cfg.CompareKey(k, it.query.MaxKey) > 0 {
			it.done = true
			return nil, nil, false, nil
		}
		if it.query.MinKey != nil && it.db.cfg.CompareKey(k, it.query.MinKey) < 0 {
			continue
		}
		if it.query.MinData != nil && it.db.cfg.CompareData(d, it.query.MinData) < 0 {
			continue
		}
		if it.query.MaxData != nil && it.db.cfg.CompareData(d, it.query.MaxData) > 0 {
			continue
		}
		return append([]byte(nil), k...), append([]byte(nil), d...), true, nil
	}
}

// advance positions curPage at the next logical page worth reading, skipping
// pages the secondary index or the page's own key range prove irrelevant.
func (it *Iterator) advance() error {
	for it.logical <= it.hiLive {
		if it.db.cfg.UseIndex {
			summary, ok, err := it.db.secIndex.Lookup(it.logical)
			if err != nil && err != secidx.ErrEvicted {
				return fmt.Errorf("embeddb: iterator index lookup: %w", err)
			}
			if err == nil && ok && it.shouldSkipBySummary(summary) {
				it.logical++
				continue
			}
		}

		p, err := it.db.readLogicalPage(it.logical)
		if err != nil {
			return err
		}
		if p == nil || p.RecordCount() == 0 {
			it.logical++
			continue
		}
		if it.pageOutOfKeyRange(p) {
			if it.done {
				return nil
			}
			it.logical++
			continue
		}

		it.curPage = p
		it.curIndex = 0
		return nil
	}
	it.done = true
	return nil
}

func (it *Iterator) shouldSkipBySummary(s page.Summary) bool {
	compareData := it.db.cfg.CompareData
	if it.query.MinData == nil || it.query.MaxData == nil {
		compareData = nil
	}
	return secidx.ShouldSkip(s, it.queryBitmap, it.query.MinData, it.query.MaxData, compareData)
}

func (it *Iterator) pageOutOfKeyRange(p *page.DataPage) bool {
	if it.query.MaxKey != nil && it.db.cfg.CompareKey(p.FirstKey(), it.query.MaxKey) > 0 {
		it.done = true
		return true
	}
	if it.query.MinKey != nil && it.db.cfg.CompareKey(p.LastKey(), it.query.MinKey) < 0 {
		return true
	}
	return false
}

// readLogicalPage loads logical's bytes, reading the write buffer directly
// when it names the page currently filling.
func (db *DB) readLogicalPage(logical uint32) (*page.DataPage, error) {
	if logical == db.writeLogical {
		return db.writePage, nil
	}
	if logical < db.oldestLive || logical > db.writeLogical {
		return nil, nil
	}
	buf := db.pool.Slot(buffer.RoleRead)
	physical := logical % db.cfg.NumDataPages
	if err := db.dataFile.ReadPage(buf, physical); err != nil {
		return nil, fmt.Errorf("embeddb: read page %d: %w", logical, err)
	}
	p := page.NewDataPage(db.layout, buf)
	if p.PageNumber() != logical {
		return nil, nil
	}
	return p, nil
}

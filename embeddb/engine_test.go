package embeddb

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ngenohydra/embeddb/storage"
)

// key/data helpers encode 4-byte big-endian unsigned integers, matching the
// default KeyToInt64/DataToInt64 codec and CompareKey/CompareData.
func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func testConfig(t *testing.T, mutate func(*Config)) Config {
	t.Helper()
	cfg := Config{
		KeySize:            4,
		DataSize:           4,
		PageSize:           64,
		BufferSizeInBlocks: 2,
		NumSplinePoints:    8,
		SplineMaxError:     2,
		NumDataPages:       8,
		DataFile:           storage.NewMemory(64, 8),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func openTestDB(t *testing.T, mutate func(*Config)) *DB {
	t.Helper()
	cfg := testConfig(t, mutate)
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.Put(u32b(1), u32b(100)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(u32b(2), u32b(200)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(u32b(1))
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if binary.BigEndian.Uint32(got) != 100 {
		t.Fatalf("Get(1) = %d, want 100", binary.BigEndian.Uint32(got))
	}
	got, err = db.Get(u32b(2))
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if binary.BigEndian.Uint32(got) != 200 {
		t.Fatalf("Get(2) = %d, want 200", binary.BigEndian.Uint32(got))
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.Put(u32b(1), u32b(100)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := db.Get(u32b(99)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(99) error = %v, want ErrNotFound", err)
	}
}

func TestPutRejectsOutOfOrderKey(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.Put(u32b(10), u32b(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(u32b(5), u32b(2)); !errors.Is(err, ErrKeyOrder) {
		t.Fatalf("Put out-of-order error = %v, want ErrKeyOrder", err)
	}
	// the store must still be usable after a rejected insert
	if err := db.Put(u32b(11), u32b(3)); err != nil {
		t.Fatalf("Put after rejection: %v", err)
	}
}

func TestPutAcrossManySealedPages(t *testing.T) {
	db := openTestDB(t, nil)
	const n = 200
	for i := uint32(0); i < n; i++ {
		if err := db.Put(u32b(i), u32b(i*10)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	// Only the most recent NumDataPages worth of keys remain live in an
	// 8-page ring; verify the still-resident tail is all retrievable and
	// correctly valued via the spline-predicted search path.
	for i := uint32(n - 10); i < n; i++ {
		got, err := db.Get(u32b(i))
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if want := i * 10; binary.BigEndian.Uint32(got) != want {
			t.Fatalf("Get(%d) = %d, want %d", i, binary.BigEndian.Uint32(got), want)
		}
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.Put(u32b(1), u32b(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	got, err := db.Get(u32b(1))
	if err != nil {
		t.Fatalf("Get after double flush: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 1 {
		t.Fatalf("Get(1) = %d, want 1", binary.BigEndian.Uint32(got))
	}
}

func TestFlushSealsPartialPage(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.Put(u32b(1), u32b(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if db.writeLogical != 0 {
		t.Fatalf("expected write cursor still at page 0 before Flush, got %d", db.writeLogical)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if db.writeLogical != 1 {
		t.Fatalf("expected Flush to seal the partial page and advance the cursor, got %d", db.writeLogical)
	}
}

func TestPutVarGetVarRoundTrip(t *testing.T) {
	db := openTestDB(t, func(c *Config) {
		c.BufferSizeInBlocks = 4
		c.UseVarData = true
		c.NumVarPages = 8
		c.VarFile = storage.NewMemory(c.PageSize, 8)
	})
	payload := []byte("hello variable-length world")
	if err := db.PutVar(u32b(1), u32b(1), payload); err != nil {
		t.Fatalf("PutVar: %v", err)
	}
	got, err := db.GetVar(u32b(1))
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("GetVar = %q, want %q", got, payload)
	}
}

func TestPutVarDisabledByDefault(t *testing.T) {
	db := openTestDB(t, nil)
	if err := db.PutVar(u32b(1), u32b(1), []byte("x")); !errors.Is(err, ErrVarDataDisabled) {
		t.Fatalf("PutVar error = %v, want ErrVarDataDisabled", err)
	}
	if _, err := db.GetVar(u32b(1)); !errors.Is(err, ErrVarDataDisabled) {
		t.Fatalf("GetVar error = %v, want ErrVarDataDisabled", err)
	}
}

func TestIndexLookupReturnsSummaryForSealedPage(t *testing.T) {
	db := openTestDB(t, func(c *Config) {
		c.BufferSizeInBlocks = 4
		c.UseIndex = true
		c.NumIndexPages = 8
		c.IndexFile = storage.NewMemory(c.PageSize, 8)
		c.UseBitmap = true
		c.BitmapSize = 1
	})
	for i := uint32(0); i < 20; i++ {
		if err := db.Put(u32b(i), u32b(i)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	s, ok, err := db.secIndex.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup(0): %v", err)
	}
	if !ok {
		t.Fatalf("Lookup(0) ok = false, want true for a sealed page")
	}
	if s.LogicalDataPage != 0 {
		t.Fatalf("Lookup(0).LogicalDataPage = %d, want 0", s.LogicalDataPage)
	}
}

func TestReopenRebuildsWriteCursorAndGet(t *testing.T) {
	dataFile := storage.NewMemory(64, 8)
	cfg := testConfig(t, func(c *Config) { c.DataFile = dataFile })

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := uint32(0); i < 20; i++ {
		if err := db.Put(u32b(i), u32b(i*10)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg2 := testConfig(t, func(c *Config) { c.DataFile = dataFile })
	reopened, err := Open(cfg2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(u32b(19))
	if err != nil {
		t.Fatalf("Get(19) after reopen: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 190 {
		t.Fatalf("Get(19) = %d, want 190", binary.BigEndian.Uint32(got))
	}

	if err := reopened.Put(u32b(20), u32b(200)); err != nil {
		t.Fatalf("Put after reopen: %v", err)
	}
	if err := reopened.Put(u32b(10), u32b(0)); !errors.Is(err, ErrKeyOrder) {
		t.Fatalf("Put(10) after reopen error = %v, want ErrKeyOrder (last key must carry over)", err)
	}
}

func TestReopenWithRecordLevelConsistencyRecoversPartialPage(t *testing.T) {
	dataFile := storage.NewMemory(64, 8)
	cfg := testConfig(t, func(c *Config) {
		c.DataFile = dataFile
		c.RecordLevelConsistency = true
	})

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put(u32b(1), u32b(11)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate a crash: close the backing file handle state without an
	// explicit Flush sealing the partial page.
	if err := db.dataFile.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg2 := testConfig(t, func(c *Config) {
		c.DataFile = dataFile
		c.RecordLevelConsistency = true
	})
	reopened, err := Open(cfg2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(u32b(1))
	if err != nil {
		t.Fatalf("Get(1) after crash-reopen: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 11 {
		t.Fatalf("Get(1) = %d, want 11", binary.BigEndian.Uint32(got))
	}
}

func TestResetDataDiscardsPriorContents(t *testing.T) {
	dataFile := storage.NewMemory(64, 8)
	cfg := testConfig(t, func(c *Config) { c.DataFile = dataFile })
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put(u32b(1), u32b(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg2 := testConfig(t, func(c *Config) {
		c.DataFile = dataFile
		c.ResetData = true
	})
	reset, err := Open(cfg2)
	if err != nil {
		t.Fatalf("reopen with ResetData: %v", err)
	}
	defer reset.Close()
	if _, err := reset.Get(u32b(1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(1) after ResetData error = %v, want ErrNotFound", err)
	}
	if err := reset.Put(u32b(0), u32b(0)); err != nil {
		t.Fatalf("Put(0) after ResetData: %v (key-order state should have been cleared)", err)
	}
}

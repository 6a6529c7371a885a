package vardata

import (
	"bytes"
	"testing"

	"github.com/ngenohydra/embeddb/buffer"
	"github.com/ngenohydra/embeddb/storage"
)

func testLog(t *testing.T, pageSize int, ringPages uint32) *Log {
	t.Helper()
	pool, err := buffer.New(buffer.Options{PageSize: pageSize, TotalSlots: 4, UseVarData: true})
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	f := storage.NewMemory(pageSize, ringPages)
	if err := f.Open(storage.OpenTruncate); err != nil {
		t.Fatalf("open: %v", err)
	}
	return NewLog(pageSize, f, pool, ringPages)
}

func TestPutGetVarWithinSinglePage(t *testing.T) {
	l := testLog(t, 128, 4)
	addr, err := l.PutVar([]byte("hello"))
	if err != nil {
		t.Fatalf("putvar: %v", err)
	}
	got, err := l.GetVar(addr)
	if err != nil {
		t.Fatalf("getvar: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("want hello got %q", got)
	}
}

func TestPutGetVarSpanningPages(t *testing.T) {
	l := testLog(t, 32, 8)
	payload := bytes.Repeat([]byte("0123456789"), 10) // 100 bytes, several pages
	addr, err := l.PutVar(payload)
	if err != nil {
		t.Fatalf("putvar: %v", err)
	}
	got, err := l.GetVar(addr)
	if err != nil {
		t.Fatalf("getvar: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes want %d bytes", len(got), len(payload))
	}
}

func TestMultipleChunksRoundTrip(t *testing.T) {
	l := testLog(t, 24, 32)
	var addrs []uint64
	var want [][]byte
	for i := 0; i < 20; i++ {
		v := bytes.Repeat([]byte{byte(i)}, i+1)
		addr, err := l.PutVar(v)
		if err != nil {
			t.Fatalf("putvar %d: %v", i, err)
		}
		addrs = append(addrs, addr)
		want = append(want, v)
	}
	for i, addr := range addrs {
		got, err := l.GetVar(addr)
		if err != nil {
			t.Fatalf("getvar %d: %v", i, err)
		}
		if !bytes.Equal(got, want[i]) {
			t.Fatalf("chunk %d mismatch: got %v want %v", i, got, want[i])
		}
	}
}

func TestGetVarReportsEvictedAfterWraparound(t *testing.T) {
	l := testLog(t, 24, 2)
	addr, err := l.PutVar([]byte("first"))
	if err != nil {
		t.Fatalf("putvar: %v", err)
	}
	for i := 0; i < 50; i++ {
		if _, err := l.PutVar(bytes.Repeat([]byte{'x'}, 15)); err != nil {
			t.Fatalf("putvar %d: %v", i, err)
		}
	}
	if _, err := l.GetVar(addr); err != ErrVarChunkEvicted {
		t.Fatalf("want ErrVarChunkEvicted got %v", err)
	}
}

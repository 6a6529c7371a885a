package page

import (
	"bytes"
	"testing"
)

func testLayout() Layout {
	return Layout{PageSize: 512, KeySize: 4, DataSize: 8, BitmapSize: 8, VarAddrSize: 0}
}

func TestDataPageAppendAndRecord(t *testing.T) {
	l := testLayout()
	buf := make([]byte, l.PageSize)
	p := NewDataPage(l, buf)
	p.Reset(7)

	if p.PageNumber() != 7 {
		t.Fatalf("want pageNumber 7 got %d", p.PageNumber())
	}
	if p.RecordCount() != 0 {
		t.Fatalf("want empty page")
	}

	key := []byte{1, 0, 0, 0}
	data := []byte{2, 0, 0, 0, 0, 0, 0, 0}
	if !p.Append(key, data, 0) {
		t.Fatal("expected append to succeed on empty page")
	}
	if p.RecordCount() != 1 {
		t.Fatalf("want recordCount 1 got %d", p.RecordCount())
	}
	gotKey, gotData, _ := p.Record(0)
	if !bytes.Equal(gotKey, key) || !bytes.Equal(gotData, data) {
		t.Fatalf("round trip mismatch: got (%v,%v)", gotKey, gotData)
	}
}

func TestDataPageCapacityForTypicalLayout(t *testing.T) {
	l := Layout{PageSize: 512, KeySize: 4, DataSize: 8, BitmapSize: 0, VarAddrSize: 0}
	if cap := l.DataPageCapacity(); cap <= 0 {
		t.Fatalf("want positive capacity got %d", cap)
	}
}

func TestDataPageAppendFailsWhenFull(t *testing.T) {
	l := Layout{PageSize: 32, KeySize: 4, DataSize: 4, BitmapSize: 0, VarAddrSize: 0}
	buf := make([]byte, l.PageSize)
	p := NewDataPage(l, buf)
	p.Reset(0)
	cap := l.DataPageCapacity()
	for i := 0; i < cap; i++ {
		if !p.Append([]byte{byte(i), 0, 0, 0}, []byte{0, 0, 0, 0}, 0) {
			t.Fatalf("append %d unexpectedly failed before capacity %d", i, cap)
		}
	}
	if p.Append([]byte{1, 2, 3, 4}, []byte{0, 0, 0, 0}, 0) {
		t.Fatal("expected append beyond capacity to fail")
	}
}

func TestDataPageFirstLastKey(t *testing.T) {
	l := Layout{PageSize: 64, KeySize: 4, DataSize: 4, BitmapSize: 0, VarAddrSize: 0}
	buf := make([]byte, l.PageSize)
	p := NewDataPage(l, buf)
	p.Reset(0)
	p.Append([]byte{1, 0, 0, 0}, []byte{0, 0, 0, 0}, 0)
	p.Append([]byte{2, 0, 0, 0}, []byte{0, 0, 0, 0}, 0)
	p.Append([]byte{3, 0, 0, 0}, []byte{0, 0, 0, 0}, 0)
	if got := p.FirstKey(); !bytes.Equal(got, []byte{1, 0, 0, 0}) {
		t.Errorf("want firstKey [1 0 0 0] got %v", got)
	}
	if got := p.LastKey(); !bytes.Equal(got, []byte{3, 0, 0, 0}) {
		t.Errorf("want lastKey [3 0 0 0] got %v", got)
	}
}

func TestIndexPageAppendAndSummaryAt(t *testing.T) {
	l := testLayout()
	buf := make([]byte, l.PageSize)
	p := NewIndexPage(l, buf, 0)
	p.Reset(3)

	s := Summary{
		Bitmap:          bytes.Repeat([]byte{0xAA}, l.BitmapSize),
		MinData:         []byte{1, 0, 0, 0, 0, 0, 0, 0},
		MaxData:         []byte{9, 0, 0, 0, 0, 0, 0, 0},
		LogicalDataPage: 42,
	}
	if !p.Append(s) {
		t.Fatal("expected append to succeed")
	}
	got := p.SummaryAt(0)
	if !bytes.Equal(got.Bitmap, s.Bitmap) || !bytes.Equal(got.MinData, s.MinData) ||
		!bytes.Equal(got.MaxData, s.MaxData) || got.LogicalDataPage != s.LogicalDataPage {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, s)
	}
}

func TestVarPageHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	p := NewVarPage(64, buf)
	p.Reset(5, 4)
	if p.PageNumber() != 5 {
		t.Errorf("want pageNumber 5 got %d", p.PageNumber())
	}
	if p.PrevVarPage() != 4 {
		t.Errorf("want prevVarPage 4 got %d", p.PrevVarPage())
	}
	if p.FirstChunkOffset() != NoChunkStart {
		t.Errorf("want default firstChunkOffset %d got %d", NoChunkStart, p.FirstChunkOffset())
	}
	p.SetFirstChunkOffset(20)
	if p.FirstChunkOffset() != 20 {
		t.Errorf("want firstChunkOffset 20 got %d", p.FirstChunkOffset())
	}
	if len(p.Payload()) != 64-VarHeaderSize {
		t.Errorf("want payload len %d got %d", 64-VarHeaderSize, len(p.Payload()))
	}
}

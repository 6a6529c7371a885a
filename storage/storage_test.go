package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newBackends(t *testing.T) map[string]PageFile {
	t.Helper()
	dir := t.TempDir()
	return map[string]PageFile{
		"memory": NewMemory(64, 4),
		"file":   NewFile(filepath.Join(dir, "data.bin"), 64),
		"mmap":   NewMMap(filepath.Join(dir, "mmap.bin"), 64, 4),
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	for name, pf := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := pf.Open(OpenTruncate); err != nil {
				t.Fatal(err)
			}
			defer pf.Close()

			want := bytes.Repeat([]byte{0xAB}, 64)
			if err := pf.WritePage(want, 2); err != nil {
				t.Fatal(err)
			}
			if err := pf.Flush(); err != nil {
				t.Fatal(err)
			}

			got := make([]byte, 64)
			if err := pf.ReadPage(got, 2); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("got %v want %v", got, want)
			}
		})
	}
}

func TestEraseZeroesRange(t *testing.T) {
	for name, pf := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := pf.Open(OpenTruncate); err != nil {
				t.Fatal(err)
			}
			defer pf.Close()

			page := bytes.Repeat([]byte{0xFF}, 64)
			if err := pf.WritePage(page, 1); err != nil {
				t.Fatal(err)
			}
			if err := pf.Erase(1, 2); err != nil {
				t.Fatal(err)
			}
			got := make([]byte, 64)
			if err := pf.ReadPage(got, 1); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, make([]byte, 64)) {
				t.Errorf("expected erased page to read as zero, got %v", got)
			}
		})
	}
}

func TestClosedReturnsErrClosed(t *testing.T) {
	pf := NewMemory(64, 1)
	if err := pf.Open(OpenTruncate); err != nil {
		t.Fatal(err)
	}
	if err := pf.Close(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	if err := pf.ReadPage(buf, 0); err != ErrClosed {
		t.Errorf("want ErrClosed got %v", err)
	}
}

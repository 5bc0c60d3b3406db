package probe

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/flatpack/internal/codec"
	"github.com/brensch/flatpack/internal/formats"
)

func newProbe() *Probe {
	c := codec.New(nil)
	return New(formats.New(c), c, nil)
}

func write(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func smallZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("x.txt")
	w.Write([]byte("x"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsEmpty(t *testing.T) {
	dir := t.TempDir()
	p := newProbe()

	empty := write(t, filepath.Join(dir, "empty.bin"), nil)
	full := write(t, filepath.Join(dir, "full.bin"), []byte("data"))

	if !p.IsEmpty(empty) || !IsEmpty(empty) {
		t.Error("zero-length file should be empty")
	}
	if p.IsEmpty(full) {
		t.Error("non-empty file reported empty")
	}
	if p.IsEmpty(filepath.Join(dir, "missing")) {
		t.Error("missing file reported empty")
	}
	if p.IsEmpty(dir) {
		t.Error("directory reported empty")
	}
}

func TestIsArchive(t *testing.T) {
	dir := t.TempDir()
	p := newProbe()
	ctx := context.Background()
	zipData := smallZip(t)

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"bundle.zip", zipData, true},
		{"BUNDLE.ZIP", zipData, true},
		{"renamed.dat", zipData, true},
		{"report.docx", zipData, false},
		{"sheet.xlsx", zipData, false},
		{"notes.txt", []byte("hello there"), false},
		{"corrupt.zip", []byte("not a zip at all"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, filepath.Join(dir, tt.name), tt.data)
			if got := p.IsArchive(ctx, path); got != tt.want {
				t.Errorf("IsArchive(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if p.IsArchive(ctx, filepath.Join(dir, "missing.zip")) {
		t.Error("missing path reported as archive")
	}
	if p.IsArchive(ctx, dir) {
		t.Error("directory reported as archive")
	}
}

func TestFormat(t *testing.T) {
	dir := t.TempDir()
	p := newProbe()
	ctx := context.Background()

	if got := p.Format(ctx, write(t, filepath.Join(dir, "a.TGZ"), []byte("x"))); got != "tgz" {
		t.Errorf("Format(a.TGZ) = %q", got)
	}
	if got := p.Format(ctx, write(t, filepath.Join(dir, "blob"), smallZip(t))); got != "zip" {
		t.Errorf("Format(blob) = %q", got)
	}
	if got := p.Format(ctx, write(t, filepath.Join(dir, "text"), []byte("words"))); got != "generic" {
		t.Errorf("Format(text) = %q", got)
	}
}

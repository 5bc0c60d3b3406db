package textextract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func zipFile(t *testing.T, path string, members map[string]string) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractBuiltins(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := New(nil)

	cases := []struct {
		name string
		data string
		want string
	}{
		{"plain.txt", "hello world", "hello world"},
		{"bom.TXT", "\xEF\xBB\xBFwith bom", "with bom"},
		{"latin.txt", "caf\xe9", "café"},
		{"table.csv", "a,b\n,\nc,\"d e\"\n", "a b c d e"},
		{"doc.xml", `<?xml version="1.0"?><root><t> one </t><n><t>two</t></n></root>`, "one two"},
		{"page.html", `<html><head><style>p{}</style><script>var x;</script></head><body><p>Hi <b>there</b></p></body></html>`, "Hi there"},
	}
	for _, tc := range cases {
		path := write(t, filepath.Join(dir, tc.name), []byte(tc.data))
		if got := r.Extract(ctx, path); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExtractXLSX(t *testing.T) {
	path := zipFile(t, filepath.Join(t.TempDir(), "book.xlsx"), map[string]string{
		"xl/sharedStrings.xml": `<sst><si><t>alpha</t></si><si><r><t>be</t></r><r><t>ta</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData><row>` +
			`<c r="A1" t="s"><v>0</v></c><c r="B1"><v>42</v></c><c r="C1" t="inlineStr"><is><t>inline</t></is></c>` +
			`</row></sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<worksheet><sheetData><row><c t="s"><v>1</v></c><c t="s"><v>99</v></c></row></sheetData></worksheet>`,
	})
	if got := New(nil).Extract(context.Background(), path); got != "alpha 42 inline beta" {
		t.Errorf("got %q", got)
	}
}

func TestExtractODS(t *testing.T) {
	path := zipFile(t, filepath.Join(t.TempDir(), "sheet.ods"), map[string]string{
		"content.xml": `<office:document-content xmlns:office="o" xmlns:text="t" xmlns:table="tb"><office:body>` +
			`<table:table-cell><text:p>first <text:span>cell</text:span></text:p></table:table-cell>` +
			`<table:table-cell><text:p>second</text:p></table:table-cell>` +
			`</office:body></office:document-content>`,
	})
	if got := New(nil).Extract(context.Background(), path); got != "first cell\nsecond" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSoftFailures(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := New(nil)

	if got := r.Extract(ctx, filepath.Join(dir, "missing.txt")); got != "" {
		t.Errorf("missing file: %q", got)
	}
	if got := r.Extract(ctx, write(t, filepath.Join(dir, "data.bin"), []byte("x"))); got != "" {
		t.Errorf("no parser: %q", got)
	}
	if got := r.Extract(ctx, write(t, filepath.Join(dir, "broken.docx"), []byte("not a zip"))); got != "" {
		t.Errorf("corrupt docx: %q", got)
	}
	if got := r.Extract(ctx, write(t, filepath.Join(dir, "broken.xml"), []byte("<a><b></a>"))); got != "" {
		t.Errorf("malformed xml: %q", got)
	}
}

func TestRegisterOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	r.Register("TXT", func(context.Context, string) (string, error) { return "custom", nil })
	r.Register("dbf", func(context.Context, string) (string, error) { return "", errors.New("unreadable") })

	if got := r.Extract(context.Background(), write(t, filepath.Join(dir, "a.txt"), []byte("ignored"))); got != "custom" {
		t.Errorf("override: %q", got)
	}
	if got := r.Extract(context.Background(), write(t, filepath.Join(dir, "a.dbf"), []byte("x"))); got != "" {
		t.Errorf("failing parser: %q", got)
	}
	exts := strings.Join(r.Extensions(), ",")
	if !strings.Contains(exts, ".dbf") || !strings.Contains(exts, ".txt") {
		t.Errorf("extensions = %s", exts)
	}
}

func TestExtractFolder(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b", "two.txt"), []byte("two"))
	write(t, filepath.Join(root, "a.txt"), []byte("one"))
	write(t, filepath.Join(root, "skip.bin"), []byte("binary"))
	write(t, filepath.Join(root, "empty.txt"), nil)

	if got := New(nil).ExtractFolder(context.Background(), root); got != "one two" {
		t.Errorf("got %q", got)
	}
	if got := New(nil).ExtractFolder(context.Background(), filepath.Join(root, "nope")); got != "" {
		t.Errorf("missing folder: %q", got)
	}
}

func TestCleaner(t *testing.T) {
	c := NewCleaner(nil)
	in := "  Índice.......  da   Ação\n\tnão   é  FÁCIL  "

	if got := c.Clean(in, CleanOptions{}); got != "Indice da Acao nao e FACIL" {
		t.Errorf("Clean = %q", got)
	}
	if got := c.Clean(in, CleanOptions{Lowercase: true, RemoveStopwords: true}); got != "indice acao facil" {
		t.Errorf("Clean lower+stopwords = %q", got)
	}
	if got := NewCleaner([]string{"foo"}).RemoveStopwords("foo bar FOO baz"); got != "bar baz" {
		t.Errorf("custom stopwords = %q", got)
	}
	if c.Clean("", CleanOptions{Lowercase: true}) != "" {
		t.Error("empty input should stay empty")
	}
}

package organizer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/brensch/flatpack/internal/db"
)

type recorder struct {
	mu     sync.Mutex
	events []db.Event
}

func (r *recorder) Record(_ context.Context, ev db.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func write(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func tree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out
}

func TestDeleteIfEmpty(t *testing.T) {
	dir := t.TempDir()
	o := New(nil, nil)
	ctx := context.Background()

	empty := write(t, filepath.Join(dir, "empty.txt"), "")
	if !o.DeleteIfEmpty(ctx, empty) {
		t.Fatal("empty file not deleted")
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("empty file still present")
	}
	if !o.DeleteIfEmpty(ctx, empty) {
		t.Error("already-gone file should report true")
	}

	full := write(t, filepath.Join(dir, "full.txt"), "x")
	if o.DeleteIfEmpty(ctx, full) {
		t.Error("non-empty file reported deleted")
	}
	if _, err := os.Stat(full); err != nil {
		t.Error("non-empty file removed")
	}
}

func TestMoveResolvesConflicts(t *testing.T) {
	dir := t.TempDir()
	o := New(nil, nil)
	ctx := context.Background()
	dst := filepath.Join(dir, "out", "a.txt")
	write(t, dst, "original")

	for i, body := range []string{"second", "third"} {
		src := write(t, filepath.Join(dir, "in", "a.txt"), body)
		if !o.Move(ctx, src, dst) {
			t.Fatalf("move %d failed", i)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Errorf("move %d left its source behind", i)
		}
	}

	want := map[string]string{"a.txt": "original", "a_1.txt": "second", "a_2.txt": "third"}
	for name, body := range want {
		if got := read(t, filepath.Join(dir, "out", name)); got != body {
			t.Errorf("%s = %q, want %q", name, got, body)
		}
	}
}

func TestMoveRefusesEmptySource(t *testing.T) {
	dir := t.TempDir()
	src := write(t, filepath.Join(dir, "empty.bin"), "")
	dst := filepath.Join(dir, "sub", "empty.bin")

	if New(nil, nil).Move(context.Background(), src, dst) {
		t.Fatal("empty source moved")
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("refused move touched the source")
	}
	if _, err := os.Stat(filepath.Dir(dst)); !os.IsNotExist(err) {
		t.Error("refused move created the destination directory")
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	if New(nil, nil).Move(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "x")) {
		t.Error("missing source reported moved")
	}
}

func TestMoveOntoItself(t *testing.T) {
	dir := t.TempDir()
	o := New(nil, nil)
	src := write(t, filepath.Join(dir, "a.txt"), "a")

	got, err := o.MoveTo(context.Background(), src, src)
	if err != nil || got != src {
		t.Errorf("MoveTo(same) = %s, %v", got, err)
	}
	gone := filepath.Join(dir, "gone.txt")
	if _, err := o.MoveTo(context.Background(), gone, gone); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("MoveTo(missing, same) err = %v, want not exist", err)
	}
	if o.Move(context.Background(), gone, gone) {
		t.Error("missing source reported moved onto itself")
	}
}

func TestCopyUniqueNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := write(t, filepath.Join(dir, "src.txt"), "new")
	dst := write(t, filepath.Join(dir, "dst.txt"), "old")

	final, err := copyUnique(src, dst, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(final) != "dst_1.txt" || read(t, final) != "new" || read(t, dst) != "old" {
		t.Errorf("final=%s dst=%q", final, read(t, dst))
	}
}

func TestOrganizeFlattensTree(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a", "b", "Report.PDF"), "pdf")
	write(t, filepath.Join(root, "a", "notes.txt"), "one")
	write(t, filepath.Join(root, "c", "notes.txt"), "two")
	write(t, filepath.Join(root, "c", "blank.dat"), "")
	write(t, filepath.Join(root, "top.txt"), "top")
	rec := &recorder{}

	sum := New(nil, rec).Organize(context.Background(), root)

	want := []string{"Report.pdf", "notes.txt", "notes_1.txt", "top.txt"}
	if got := tree(t, root); !equalStrings(got, want) {
		t.Errorf("tree = %v, want %v", got, want)
	}
	if sum.Moved != 3 || sum.Deleted != 1 || sum.Kept != 1 || sum.DirsRemoved != 3 || sum.Failures != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(rec.events) != sum.Moved+sum.Deleted+sum.DirsRemoved {
		t.Errorf("recorded %d events for %+v", len(rec.events), sum)
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root removed")
	}
}

func TestOrganizeNormalizesUnicode(t *testing.T) {
	root := t.TempDir()
	decomposed := "cafe\u0301.TXT"
	write(t, filepath.Join(root, "sub", decomposed), "coffee")

	New(nil, nil).Organize(context.Background(), root)

	if got := read(t, filepath.Join(root, "caf\u00e9.txt")); got != "coffee" {
		t.Errorf("normalized file = %q", got)
	}
}

func TestOrganizeIsIdempotent(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "x", "a.txt"), "a")
	o := New(nil, nil)
	o.Organize(context.Background(), root)
	before := tree(t, root)

	sum := o.Organize(context.Background(), root)
	if sum.Moved != 0 || sum.Kept != 1 {
		t.Errorf("second pass summary = %+v", sum)
	}
	if after := tree(t, root); !equalStrings(before, after) {
		t.Errorf("tree changed: %v -> %v", before, after)
	}
}

func TestNormalizedName(t *testing.T) {
	cases := map[string]string{
		"A.TXT":          "A.txt",
		"archive.Tar.GZ": "archive.Tar.gz",
		".env":           ".env",
		"noext":          "noext",
		"e\u0301.Md":     "\u00e9.md",
	}
	for in, want := range cases {
		if got := NormalizedName(in); got != want {
			t.Errorf("NormalizedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeleteFolder(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "victim")
	write(t, filepath.Join(target, "deep", "f.txt"), "f")
	o := New(nil, nil)

	if !o.DeleteFolder(context.Background(), target) {
		t.Fatal("DeleteFolder failed")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("folder still present")
	}
	if o.DeleteFolder(context.Background(), target) {
		t.Error("missing folder should report false")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

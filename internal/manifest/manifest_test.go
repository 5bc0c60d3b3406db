package manifest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildAndInspect(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "b", "two.TXT"), "same")
	writeFixture(t, filepath.Join(root, "a.txt"), "same")
	writeFixture(t, filepath.Join(root, "c.csv"), "x,y\n")
	out := filepath.Join(root, "manifest.parquet")
	writeFixture(t, out, "stale manifest from an earlier run")

	entries, err := Build(context.Background(), root, out, Options{RunID: "run-1", Workers: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Path != "a.txt" || entries[1].Path != "b/two.TXT" || entries[2].Path != "c.csv" {
		t.Errorf("order = %s, %s, %s", entries[0].Path, entries[1].Path, entries[2].Path)
	}
	sum := sha256.Sum256([]byte("same"))
	if entries[0].SHA256 != hex.EncodeToString(sum[:]) || entries[1].Ext != ".txt" || entries[0].RunID != "run-1" {
		t.Errorf("entry fields = %+v / %+v", entries[0], entries[1])
	}

	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	s, err := Inspect(context.Background(), conn, out)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if s.Files != 3 || s.Bytes != 12 || s.Duplicates != 1 {
		t.Errorf("summary totals = %+v", s)
	}
	if len(s.ByExt) != 2 || s.ByExt[0].Ext != ".txt" || s.ByExt[0].Files != 2 {
		t.Errorf("by ext = %+v", s.ByExt)
	}
	if len(s.RunIDs) != 1 || s.RunIDs[0] != "run-1" {
		t.Errorf("runs = %v", s.RunIDs)
	}

	var buf bytes.Buffer
	s.Print(&buf)
	if !strings.Contains(buf.String(), "sha256") || !strings.Contains(buf.String(), ".csv") {
		t.Errorf("report missing fields:\n%s", buf.String())
	}
}

func TestBuildEmptyTree(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "m.parquet")
	entries, err := Build(context.Background(), root, out, Options{})
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries=%v err=%v", entries, err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "a.txt"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, root, filepath.Join(t.TempDir(), "m.parquet"), Options{}); err == nil {
		t.Error("cancelled build should fail")
	}
}

func TestQuote(t *testing.T) {
	if got := quote(`C:\data\it's.parquet`); got != `'C:/data/it''s.parquet'` {
		t.Errorf("quote = %s", got)
	}
}

package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name    string
		member  string
		want    string
		wantErr bool
	}{
		{"plain", "a/b.txt", filepath.Join(base, "a", "b.txt"), false},
		{"leading slash", "/etc/passwd", filepath.Join(base, "etc", "passwd"), false},
		{"dot dot", "../escape.txt", "", true},
		{"nested dot dot", "a/../../escape.txt", "", true},
		{"backslash dot dot", `a\..\..\escape.txt`, "", true},
		{"current dir", "./x", filepath.Join(base, "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(base, tt.member)
			if tt.wantErr {
				if !errors.Is(err, ErrPathTraversal) {
					t.Fatalf("SafeJoin(%q) err = %v, want ErrPathTraversal", tt.member, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SafeJoin(%q): %v", tt.member, err)
			}
			if got != tt.want {
				t.Errorf("SafeJoin(%q) = %q, want %q", tt.member, got, tt.want)
			}
		})
	}
}

func TestCandidate(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"/d/a.txt", 0, "/d/a.txt"},
		{"/d/a.txt", 1, "/d/a_1.txt"},
		{"/d/a.tar.gz", 2, "/d/a.tar_2.gz"},
		{"/d/README", 3, "/d/README_3"},
		{"/d/.env", 1, "/d/.env_1"},
	}
	for _, tt := range tests {
		if got := Candidate(filepath.FromSlash(tt.path), tt.n); got != filepath.FromSlash(tt.want) {
			t.Errorf("Candidate(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}

func TestCreateUniqueNeverClobbers(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(target, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	var names []string
	for i := 0; i < 2; i++ {
		f, err := CreateUnique(target, 0o644)
		if err != nil {
			t.Fatalf("CreateUnique: %v", err)
		}
		names = append(names, filepath.Base(f.Name()))
		f.Close()
	}
	if names[0] != "a_1.txt" || names[1] != "a_2.txt" {
		t.Errorf("names = %v, want [a_1.txt a_2.txt]", names)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "original" {
		t.Errorf("original file was modified: %q", data)
	}
}

func TestMkdirUnique(t *testing.T) {
	dir := t.TempDir()
	first, err := MkdirUnique(filepath.Join(dir, "job"), 0o755)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MkdirUnique(filepath.Join(dir, "job"), 0o755)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "job" || filepath.Base(second) != "job_1" {
		t.Errorf("got %q and %q", first, second)
	}
}

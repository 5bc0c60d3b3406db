// Package fsutil holds the filesystem primitives shared by the extractor,
// the codecs and the organizer: traversal-safe joins and no-clobber naming.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrPathTraversal is returned when an archive member would land outside its destination.
var ErrPathTraversal = errors.New("fsutil: path traversal detected")

// maxSuffix bounds the _N search so a pathological directory cannot spin forever.
const maxSuffix = 1 << 20

// SafeJoin joins an archive member name onto base and rejects anything that
// would escape base (absolute names, "..", drive letters).
func SafeJoin(base, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if filepath.VolumeName(name) != "" {
		return "", ErrPathTraversal
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, filepath.Clean("/"+name))
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// SplitExt splits a file name into stem and extension. Leading-dot names
// such as ".env" have no extension.
func SplitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// Candidate returns the n-th conflict name for path: n == 0 is path itself,
// otherwise "<stem>_<n><ext>".
func Candidate(path string, n int) string {
	if n == 0 {
		return path
	}
	dir, name := filepath.Split(path)
	stem, ext := SplitExt(name)
	return filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
}

// CreateUnique atomically creates a new file at path or at its first free
// conflict name. An existing file is never opened or truncated.
func CreateUnique(path string, perm fs.FileMode) (*os.File, error) {
	for n := 0; n < maxSuffix; n++ {
		c := Candidate(path, n)
		f, err := os.OpenFile(c, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create %s: %w", c, err)
		}
	}
	return nil, fmt.Errorf("no free name for %s", path)
}

// MkdirUnique atomically claims a new directory at path or at its first free
// conflict name. The parent must already exist.
func MkdirUnique(path string, perm fs.FileMode) (string, error) {
	for n := 0; n < maxSuffix; n++ {
		c := Candidate(path, n)
		err := os.Mkdir(c, perm)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("mkdir %s: %w", c, err)
		}
	}
	return "", fmt.Errorf("no free name for %s", path)
}

// Exists reports whether path exists, without following a final symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

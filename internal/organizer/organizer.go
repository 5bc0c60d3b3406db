// Package organizer flattens an extracted tree: empty files are deleted,
// everything else is moved to the tree root under a normalized name, and the
// directories left behind are removed.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/fsutil"
	"github.com/brensch/flatpack/internal/probe"
)

const maxSuffix = 1 << 20

// Recorder receives organizer events. *db.Ledger satisfies it.
type Recorder interface {
	Record(ctx context.Context, ev db.Event)
}

// Summary tallies one Organize pass.
type Summary struct {
	Moved       int
	Deleted     int
	Kept        int // already in place under their normalized name
	DirsRemoved int
	Failures    int
}

type Organizer struct {
	logger   *slog.Logger
	recorder Recorder
}

func New(logger *slog.Logger, recorder Recorder) *Organizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Organizer{logger: logger, recorder: recorder}
}

// DeleteIfEmpty removes path when it is a zero-length file. A path that is
// already gone counts as deleted. Non-empty files and failures return false.
func (o *Organizer) DeleteIfEmpty(ctx context.Context, path string) bool {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err != nil {
		o.logger.Warn("Could not stat file.", slog.String("path", path), slog.Any("error", err))
		return false
	}
	if !info.Mode().IsRegular() || info.Size() != 0 {
		return false
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true
		}
		o.logger.Warn("Could not delete empty file.", slog.String("path", path), slog.Any("error", err))
		return false
	}
	o.logger.Debug("Deleted empty file.", slog.String("path", path))
	o.record(ctx, db.Event{Path: path, FileType: db.FileTypeFile, Event: db.EventDeleted, Message: "empty"})
	return true
}

// Move relocates src to dst, or to dst's first free "_N" name when dst is
// taken. Empty sources are refused. Existing files are never overwritten.
func (o *Organizer) Move(ctx context.Context, src, dst string) bool {
	_, err := o.MoveTo(ctx, src, dst)
	return err == nil
}

// MoveTo is Move returning the path the file ended up at.
func (o *Organizer) MoveTo(ctx context.Context, src, dst string) (string, error) {
	l := o.logger.With(slog.String("source", src))
	info, err := os.Lstat(src)
	if err != nil {
		l.Warn("Cannot move file.", slog.Any("error", err))
		return "", fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", src)
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return dst, nil
	}
	if probe.IsEmpty(src) {
		return "", fmt.Errorf("refusing to move empty file %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		l.Warn("Cannot create destination directory.", slog.Any("error", err))
		return "", fmt.Errorf("create parent of %s: %w", dst, err)
	}

	final, err := linkUnique(src, dst)
	if err != nil {
		// Hard links unavailable (other device, filesystem without links).
		l.Debug("Link failed, copying instead.", slog.Any("reason", err))
		final, err = copyUnique(src, dst, info.Mode().Perm())
		if err != nil {
			l.Warn("Could not move file.", slog.String("destination", dst), slog.Any("error", err))
			return "", err
		}
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.Warn("File copied but source could not be removed.", slog.String("destination", final), slog.Any("error", err))
		return final, fmt.Errorf("remove %s after move: %w", src, err)
	}
	l.Debug("Moved file.", slog.String("destination", final))
	o.record(ctx, db.Event{Path: src, FileType: db.FileTypeFile, Event: db.EventMoved, OutputPath: final})
	return final, nil
}

// linkUnique hard-links src at the first free candidate name for dst.
// os.Link fails on an existing target, so nothing is ever replaced.
func linkUnique(src, dst string) (string, error) {
	for n := 0; n < maxSuffix; n++ {
		c := fsutil.Candidate(dst, n)
		err := os.Link(src, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s", dst)
}

func copyUnique(src, dst string, perm fs.FileMode) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := fsutil.CreateUnique(dst, perm)
	if err != nil {
		return "", err
	}
	final := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(final)
		return "", fmt.Errorf("copy %s to %s: %w", src, final, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(final)
		return "", fmt.Errorf("close %s: %w", final, err)
	}
	return final, nil
}

// NormalizedName is the name a file gets at the tree root: the stem in
// Unicode NFC and the extension lower-cased.
func NormalizedName(name string) string {
	stem, ext := fsutil.SplitExt(name)
	return norm.NFC.String(stem) + strings.ToLower(ext)
}

// Organize flattens root. Directories are handled deepest first; each file
// is deleted when empty and otherwise moved to root under its normalized
// name. Directories emptied along the way are removed; root itself stays.
// Failures are counted and logged and never stop the walk.
func (o *Organizer) Organize(ctx context.Context, root string) Summary {
	var sum Summary
	l := o.logger.With(slog.String("root", root))
	root = filepath.Clean(root)

	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			l.Warn("Skipping unreadable path.", slog.String("path", p), slog.Any("error", err))
			sum.Failures++
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		l.Error("Walk failed.", slog.Any("error", err))
		sum.Failures++
		return sum
	}
	sort.SliceStable(dirs, func(i, j int) bool { return depth(dirs[i]) > depth(dirs[j]) })

	placed := make(map[string]bool)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			l.Warn("Organize cancelled.", slog.Any("error", ctx.Err()))
			sum.Failures++
			return sum
		}
		o.organizeDir(ctx, l, root, dir, placed, &sum)
		if dir == root {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			l.Warn("Could not remove directory.", slog.String("dir", dir), slog.Any("error", err))
			sum.Failures++
			continue
		}
		sum.DirsRemoved++
		o.record(ctx, db.Event{Path: dir, FileType: db.FileTypeDir, Event: db.EventDirRemoved})
	}
	l.Info("Organize finished.",
		slog.Int("moved", sum.Moved),
		slog.Int("deleted", sum.Deleted),
		slog.Int("kept", sum.Kept),
		slog.Int("dirs_removed", sum.DirsRemoved),
		slog.Int("failures", sum.Failures))
	return sum
}

func (o *Organizer) organizeDir(ctx context.Context, l *slog.Logger, root, dir string, placed map[string]bool, sum *Summary) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.Warn("Could not list directory.", slog.String("dir", dir), slog.Any("error", err))
		sum.Failures++
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		src := filepath.Join(dir, e.Name())
		if placed[src] {
			continue
		}
		if probe.IsEmpty(src) {
			if o.DeleteIfEmpty(ctx, src) {
				sum.Deleted++
			} else {
				sum.Failures++
			}
			continue
		}
		dst := filepath.Join(root, NormalizedName(e.Name()))
		if dst == src {
			sum.Kept++
			continue
		}
		final, err := o.MoveTo(ctx, src, dst)
		if err != nil {
			sum.Failures++
			continue
		}
		placed[final] = true
		sum.Moved++
	}
}

// DeleteFolder removes path and everything below it. A missing folder
// returns false.
func (o *Organizer) DeleteFolder(ctx context.Context, path string) bool {
	if !fsutil.Exists(path) {
		o.logger.Info("Folder not found.", slog.String("path", path))
		return false
	}
	if err := os.RemoveAll(path); err != nil {
		o.logger.Error("Could not delete folder.", slog.String("path", path), slog.Any("error", err))
		return false
	}
	o.record(ctx, db.Event{Path: path, FileType: db.FileTypeDir, Event: db.EventDirRemoved, Message: "recursive"})
	return true
}

func (o *Organizer) record(ctx context.Context, ev db.Event) {
	if o.recorder != nil {
		o.recorder.Record(ctx, ev)
	}
}

func depth(p string) int {
	return strings.Count(filepath.ToSlash(p), "/")
}

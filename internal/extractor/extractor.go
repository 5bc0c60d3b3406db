// Package extractor decodes an archive and every archive nested inside it
// until none remain, deleting each archive once it has been consumed.
package extractor

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
	"time"

	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/formats"
)

// Prober classifies paths.
type Prober interface {
	IsEmpty(path string) bool
	IsArchive(ctx context.Context, path string) bool
	Format(ctx context.Context, path string) string
}

// Resolver picks the handler for a path.
type Resolver interface {
	ResolvePath(path string) formats.Handler
}

// Recorder receives extraction events. *db.Ledger satisfies it.
type Recorder interface {
	Record(ctx context.Context, ev db.Event)
}

// Extractor runs the probe, decode, rescan cycle.
type Extractor struct {
	probe    Prober
	resolver Resolver
	recorder Recorder
	logger   *slog.Logger
	maxDepth int
}

type Option func(*Extractor)

// WithRecorder sends every event to r.
func WithRecorder(r Recorder) Option { return func(e *Extractor) { e.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// WithMaxDepth stops descending below depth n. Zero means unbounded.
func WithMaxDepth(n int) Option { return func(e *Extractor) { e.maxDepth = n } }

func New(probe Prober, resolver Resolver, opts ...Option) *Extractor {
	e := &Extractor{probe: probe, resolver: resolver}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// item is one archive waiting on the worklist.
type item struct {
	path  string
	dir   string
	depth int
}

// Extract decodes path into destination and then drains every nested
// archive found under it. Nested archives decode into their own directory.
// The input is deleted once the worklist is empty, or straight away when it
// fails to decode. A cancelled extraction removes what it wrote and keeps
// the input. Missing and non-archive inputs carry ErrNotFound and
// ErrNotAnArchive but are not failures.
func (e *Extractor) Extract(ctx context.Context, path, destination string) Outcome {
	start := time.Now()
	out := Outcome{Path: path, Destination: destination, State: StatePending}
	l := e.logger.With(slog.String("input", path))

	e.transition(l, &out, StateProbing)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.Info("Input does not exist, nothing to do.")
			out.Err = fmt.Errorf("%w: %s", ErrNotFound, path)
			out.Result = ResultMissing
			e.finish(ctx, l, &out, StateDone, start)
			return out
		}
		out.Err = fmt.Errorf("%w: stat %s: %w", ErrFilesystem, path, err)
		out.Result = ResultFailed
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}
	if info.Mode().IsRegular() && info.Size() == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			out.Err = fmt.Errorf("%w: remove empty %s: %w", ErrFilesystem, path, err)
			out.Result = ResultFailed
			e.finish(ctx, l, &out, StateFailed, start)
			return out
		}
		l.Info("Empty input deleted.")
		out.Result = ResultEmpty
		out.OK = true
		e.finish(ctx, l, &out, StateDone, start)
		return out
	}
	if !e.probe.IsArchive(ctx, path) {
		l.Info("Input is not an archive, leaving it in place.")
		out.Err = fmt.Errorf("%w: %s", ErrNotAnArchive, path)
		out.Result = ResultNotArchive
		e.finish(ctx, l, &out, StateDone, start)
		return out
	}
	out.Format = e.probe.Format(ctx, path)

	e.transition(l, &out, StateExtracting)
	e.record(ctx, db.Event{Path: path, FileType: db.FileTypeArchive, Event: db.EventExtractStart, Format: out.Format, OutputPath: destination})
	before := snapshot(destination)
	known := make(map[string]bool, len(before))
	for p := range before {
		known[p] = true
	}
	reported, decodeErr := e.run(ctx, path, destination)
	if decodeErr != nil {
		if ctx.Err() != nil {
			e.discard(l, destination, before)
			out.Err = ctx.Err()
		} else {
			out.Err = errors.Join(decodeErr, consume(path))
			out.Produced = existing(reported)
		}
		out.Result = ResultFailed
		l.Warn("Archive could not be decoded.", slog.Any("error", out.Err))
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}

	e.transition(l, &out, StateRescanning)
	var stack []item
	var survivors []string
	for _, p := range discover(destination, destination, reported, known) {
		if e.probe.IsArchive(ctx, p) {
			stack = append(stack, item{path: p, dir: filepath.Dir(p), depth: 1})
		} else {
			survivors = append(survivors, p)
		}
	}
	survivors = append(survivors, e.drain(ctx, l, destination, stack, known, &out)...)

	// The input outlives its partial output so a cancelled job can be rerun.
	if err := ctx.Err(); err != nil {
		e.discard(l, destination, before)
		out.Err = err
		out.Result = ResultFailed
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}
	out.Produced = existing(survivors)
	if err := consume(path); err != nil {
		out.Err = err
		out.Result = ResultFailed
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}
	out.Result = ResultExtracted
	out.OK = true
	e.finish(ctx, l, &out, StateDone, start)
	return out
}

// Rescan walks root and extracts every archive it still contains. On a
// fully extracted tree it does nothing and reports zero nested decodes.
func (e *Extractor) Rescan(ctx context.Context, root string) Outcome {
	start := time.Now()
	out := Outcome{Path: root, Destination: root, State: StateRescanning}
	l := e.logger.With(slog.String("root", root))

	var stack []item
	known := make(map[string]bool)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			l.Warn("Skipping unreadable path during rescan.", slog.String("path", p), slog.Any("error", err))
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		known[p] = true
		if d.Type().IsRegular() && e.probe.IsArchive(ctx, p) {
			stack = append(stack, item{path: p, dir: filepath.Dir(p), depth: 1})
		}
		return ctx.Err()
	})
	if err != nil {
		out.Err = fmt.Errorf("%w: walk %s: %w", ErrFilesystem, root, err)
		out.Result = ResultFailed
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}
	// Pop in lexical order so runs are reproducible.
	sort.Slice(stack, func(i, j int) bool { return stack[i].path > stack[j].path })

	out.Produced = existing(e.drain(ctx, l, root, stack, known, &out))
	if err := ctx.Err(); err != nil {
		out.Err = err
		out.Result = ResultFailed
		e.finish(ctx, l, &out, StateFailed, start)
		return out
	}
	out.Result = ResultRescanned
	out.OK = out.NestedFailures == 0
	e.finish(ctx, l, &out, StateDone, start)
	return out
}

// drain processes the worklist until it is empty and returns the non-archive
// files created along the way. After every decode the archive's directory is
// walked again, so files a handler wrote but did not report are still found.
// known holds every path under root already classified; a consumed archive
// leaves it so a later file with the same name is picked up.
func (e *Extractor) drain(ctx context.Context, l *slog.Logger, root string, stack []item, known map[string]bool, out *Outcome) []string {
	var survivors []string

	for len(stack) > 0 {
		if ctx.Err() != nil {
			l.Warn("Extraction cancelled with archives still queued.", slog.Int("queued", len(stack)))
			return survivors
		}
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		il := l.With(slog.String("archive", it.path), slog.Int("depth", it.depth))
		if e.maxDepth > 0 && it.depth > e.maxDepth {
			il.Warn("Nesting limit reached, leaving archive in place.", slog.Int("max_depth", e.maxDepth))
			e.record(ctx, db.Event{Path: it.path, FileType: db.FileTypeArchive, Event: db.EventSkipped, Message: "nesting limit reached"})
			survivors = append(survivors, it.path)
			continue
		}
		if _, err := os.Lstat(it.path); err != nil {
			delete(known, it.path)
			continue
		}
		if e.probe.IsEmpty(it.path) {
			if err := os.Remove(it.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				il.Warn("Could not delete empty nested archive.", slog.Any("error", err))
				out.NestedFailures++
				continue
			}
			delete(known, it.path)
			e.record(ctx, db.Event{Path: it.path, FileType: db.FileTypeArchive, Event: db.EventEmpty})
			continue
		}

		format := e.probe.Format(ctx, it.path)
		started := time.Now()
		reported, err := e.decode(ctx, it.path, it.dir)
		elapsed := time.Since(started)
		if _, statErr := os.Lstat(it.path); statErr != nil {
			delete(known, it.path)
		}
		if ctx.Err() != nil {
			l.Warn("Extraction cancelled during a nested decode.", slog.Int("queued", len(stack)))
			return survivors
		}
		if err != nil {
			out.NestedFailures++
			il.Warn("Nested archive failed, continuing.", slog.Any("error", err))
			e.record(ctx, db.Event{Path: it.path, FileType: db.FileTypeArchive, Event: db.EventError, Format: format, Message: err.Error(), Duration: &elapsed})
		} else {
			out.Nested++
			il.Debug("Nested archive extracted.", slog.Int("files", len(reported)))
			e.record(ctx, db.Event{Path: it.path, FileType: db.FileTypeArchive, Event: db.EventNested, Format: format, OutputPath: it.dir, Duration: &elapsed})
		}

		for _, p := range discover(root, it.dir, reported, known) {
			if e.probe.IsArchive(ctx, p) {
				stack = append(stack, item{path: p, dir: filepath.Dir(p), depth: it.depth + 1})
			} else {
				survivors = append(survivors, p)
			}
		}
	}
	return survivors
}

// run decodes path into dir with the resolved handler and leaves the archive
// where it is.
func (e *Extractor) run(ctx context.Context, path, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrFilesystem, dir, err)
	}
	reported, err := e.resolver.ResolvePath(path).Decode(ctx, path, dir)
	if err != nil {
		if ctx.Err() != nil {
			return reported, ctx.Err()
		}
		return reported, fmt.Errorf("%w: %s: %w", ErrDecode, filepath.Base(path), err)
	}
	return reported, nil
}

// decode runs the handler and removes the archive whether or not it decoded.
// A cancelled decode keeps the archive so it can be retried.
func (e *Extractor) decode(ctx context.Context, path, dir string) ([]string, error) {
	reported, err := e.run(ctx, path, dir)
	if err != nil && ctx.Err() != nil {
		return reported, err
	}
	return reported, errors.Join(err, consume(path))
}

// consume deletes an archive that has been decoded or has failed to decode.
func consume(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove consumed archive: %w", ErrFilesystem, err)
	}
	return nil
}

// discard removes every path under root that is not in before, deepest
// first. Directories that still hold older entries stay.
func (e *Extractor) discard(l *slog.Logger, root string, before map[string]bool) {
	var created []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !before[p] {
			created = append(created, p)
		}
		return nil
	})
	sort.Slice(created, func(i, j int) bool { return len(created[i]) > len(created[j]) })
	removed := 0
	for _, p := range created {
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	if removed > 0 {
		l.Info("Removed partial output of cancelled extraction.", slog.Int("paths", removed), slog.String("dir", root))
	}
}

func (e *Extractor) transition(l *slog.Logger, out *Outcome, to State) {
	l.Debug("State transition.", slog.String("from", out.State.String()), slog.String("to", to.String()))
	out.State = to
}

func (e *Extractor) finish(ctx context.Context, l *slog.Logger, out *Outcome, final State, start time.Time) {
	e.transition(l, out, final)
	out.Duration = time.Since(start)

	ev := db.Event{Path: out.Path, FileType: db.FileTypeArchive, Format: out.Format, OutputPath: out.Destination, Duration: &out.Duration}
	switch out.Result {
	case ResultExtracted, ResultRescanned:
		ev.Event = db.EventExtractEnd
		ev.Message = fmt.Sprintf("files=%d nested=%d nested_failures=%d", len(out.Produced), out.Nested, out.NestedFailures)
		l.Info("Extraction finished.",
			slog.Int("files", len(out.Produced)),
			slog.Int("nested", out.Nested),
			slog.Int("nested_failures", out.NestedFailures),
			slog.Duration("duration", out.Duration.Round(time.Millisecond)))
	case ResultEmpty:
		ev.Event = db.EventEmpty
	case ResultMissing:
		ev.Event = db.EventMissing
	case ResultNotArchive:
		ev.Event = db.EventNotArchive
	default:
		ev.Event = db.EventError
		if out.Err != nil {
			ev.Message = out.Err.Error()
		}
	}
	if out.Result == ResultRescanned {
		ev.FileType = db.FileTypeDir
	}
	e.record(ctx, ev)
}

func (e *Extractor) record(ctx context.Context, ev db.Event) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, ev)
}

// snapshot records every path under root.
func snapshot(root string) map[string]bool {
	seen := make(map[string]bool)
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil {
			seen[p] = true
		}
		return nil
	})
	return seen
}

// discover returns the regular files under dir that are not yet in known,
// together with any reported paths inside root, and marks them known.
func discover(root, dir string, reported []string, known map[string]bool) []string {
	var found []string
	add := func(p string) {
		if !known[p] {
			known[p] = true
			found = append(found, p)
		}
	}
	for _, p := range reported {
		p = filepath.Clean(p)
		if !within(root, p) {
			continue
		}
		if info, err := os.Lstat(p); err == nil && info.Mode().IsRegular() {
			add(p)
		}
	}
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			add(p)
		}
		return nil
	})
	sort.Strings(found)
	return found
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// existing filters paths down to those still on disk, deduplicated and sorted.
func existing(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Lstat(p); err == nil {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

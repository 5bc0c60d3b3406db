// Package orchestrator fans extraction jobs out over a bounded worker pool
// and collects one outcome per input, in input order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brensch/flatpack/internal/config"
	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/extractor"
	"github.com/brensch/flatpack/internal/fsutil"
)

// ErrJobPanic marks a job that panicked. The panic is contained to its slot.
var ErrJobPanic = errors.New("extraction job panicked")

// Extractor runs a single extraction job.
type Extractor interface {
	Extract(ctx context.Context, path, destination string) extractor.Outcome
}

// Prober decides whether a job needs a private output directory.
type Prober interface {
	IsEmpty(path string) bool
	IsArchive(ctx context.Context, path string) bool
}

// Progress is sent once when a job starts and once when it finishes.
type Progress struct {
	Index     int
	Total     int
	Path      string
	Done      bool
	Completed int // jobs finished so far, including this one
	Outcome   extractor.Outcome
	Elapsed   time.Duration
}

// Coordinator owns the worker pool.
type Coordinator struct {
	extractor  Extractor
	probe      Prober
	recorder   extractor.Recorder
	logger     *slog.Logger
	numWorkers int
	jobTimeout time.Duration
	progress   chan<- Progress
}

type Option func(*Coordinator)

func WithRecorder(r extractor.Recorder) Option { return func(c *Coordinator) { c.recorder = r } }
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// WithProgress streams job progress to ch. The caller owns ch and closes it
// after RunBatch returns.
func WithProgress(ch chan<- Progress) Option { return func(c *Coordinator) { c.progress = ch } }

// New builds a coordinator sized from cfg.NumWorkers with cfg.JobTimeout per job.
func New(ex Extractor, probe Prober, cfg config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		extractor:  ex,
		probe:      probe,
		numWorkers: cfg.NumWorkers,
		jobTimeout: cfg.JobTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.numWorkers < 1 {
		c.numWorkers = 1
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

type job struct {
	index int
	path  string
}

type result struct {
	index   int
	outcome extractor.Outcome
}

// RunBatch extracts every path and returns result[i] for paths[i].
func (c *Coordinator) RunBatch(ctx context.Context, paths []string, destination string) []bool {
	outcomes, _ := c.RunBatchOutcomes(ctx, paths, destination)
	ok := make([]bool, len(outcomes))
	for i, o := range outcomes {
		ok[i] = o.OK
	}
	return ok
}

// RunBatchOutcomes is RunBatch with full outcomes. The returned error joins
// the per-job failures for reporting; every slot is filled regardless.
func (c *Coordinator) RunBatchOutcomes(ctx context.Context, paths []string, destination string) ([]extractor.Outcome, error) {
	batchStart := time.Now()
	total := len(paths)
	outcomes := make([]extractor.Outcome, total)
	if total == 0 {
		return outcomes, nil
	}
	l := c.logger.With(slog.String("destination", destination))
	c.record(ctx, db.Event{Path: destination, FileType: db.FileTypeBatch, Event: db.EventBatchStart, Message: fmt.Sprintf("inputs=%d workers=%d", total, c.numWorkers)})

	if err := os.MkdirAll(destination, 0o755); err != nil {
		err = fmt.Errorf("%w: create destination %s: %w", extractor.ErrFilesystem, destination, err)
		l.Error("Cannot create destination, failing every job.", slog.Any("error", err))
		for i, p := range paths {
			outcomes[i] = extractor.Outcome{Path: p, Destination: destination, State: extractor.StateFailed, Result: extractor.ResultFailed, Err: err}
		}
		c.finishBatch(ctx, l, destination, outcomes, batchStart)
		return outcomes, err
	}

	jobs := make(chan job, total)
	results := make(chan result, total)
	var wg sync.WaitGroup

	workers := min(c.numWorkers, total)
	l.Info("Starting extraction workers.", slog.Int("workers", workers), slog.Int("jobs", total))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			wl := l.With(slog.Int("worker_id", workerID))
			for j := range jobs {
				c.send(ctx, Progress{Index: j.index, Total: total, Path: j.path})
				results <- result{index: j.index, outcome: c.runJob(ctx, wl, j.path, destination)}
			}
		}(w)
	}

	for i, p := range paths {
		jobs <- job{index: i, path: p}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var batchErr error
	completed := 0
	for r := range results {
		completed++
		outcomes[r.index] = r.outcome
		if failed(r.outcome) {
			batchErr = errors.Join(batchErr, fmt.Errorf("%s: %w", filepath.Base(r.outcome.Path), r.outcome.Err))
		}
		c.send(ctx, Progress{
			Index:     r.index,
			Total:     total,
			Path:      r.outcome.Path,
			Done:      true,
			Completed: completed,
			Outcome:   r.outcome,
			Elapsed:   r.outcome.Duration,
		})
	}

	c.finishBatch(ctx, l, destination, outcomes, batchStart)
	if n := errorCount(batchErr); n > 0 {
		l.Warn("Batch finished with failed jobs.", slog.Int("failed", n))
	}
	return outcomes, batchErr
}

// runJob extracts one input into its own directory under destination.
// It never panics and always returns an outcome for path.
func (c *Coordinator) runJob(ctx context.Context, l *slog.Logger, path, destination string) (out extractor.Outcome) {
	jl := l.With(slog.String("input", filepath.Base(path)))
	var jobDir string
	defer func() {
		if r := recover(); r != nil {
			jl.Error("Job panicked.", slog.Any("panic", r))
			out = extractor.Outcome{
				Path:        path,
				Destination: jobDir,
				State:       extractor.StateFailed,
				Result:      extractor.ResultFailed,
				Err:         fmt.Errorf("%w: %v", ErrJobPanic, r),
			}
			c.cleanup(jl, jobDir, false)
		}
	}()

	jobCtx := ctx
	if c.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}

	// Missing, empty and non-archive inputs produce nothing, so they do not
	// claim a directory.
	if fsutil.Exists(path) && !c.probe.IsEmpty(path) && c.probe.IsArchive(jobCtx, path) {
		dir, err := fsutil.MkdirUnique(filepath.Join(destination, JobDirName(path)), 0o755)
		if err != nil {
			return extractor.Outcome{
				Path:        path,
				Destination: destination,
				State:       extractor.StateFailed,
				Result:      extractor.ResultFailed,
				Err:         fmt.Errorf("%w: claim job directory: %w", extractor.ErrFilesystem, err),
			}
		}
		jobDir = dir
	}

	target := destination
	if jobDir != "" {
		target = jobDir
	}
	out = c.extractor.Extract(jobCtx, path, target)
	if !out.OK && jobDir != "" {
		c.cleanup(jl, jobDir, jobCtx.Err() != nil)
	}
	return out
}

// cleanup removes what a failed job left in its private directory. A
// cancelled job loses all of its partial output; the extractor keeps the
// input until its worklist is empty, so the input can be extracted again.
// Otherwise only an empty directory goes.
func (c *Coordinator) cleanup(l *slog.Logger, jobDir string, cancelled bool) {
	if jobDir == "" {
		return
	}
	if cancelled {
		if err := os.RemoveAll(jobDir); err != nil {
			l.Warn("Could not remove partial output.", slog.String("dir", jobDir), slog.Any("error", err))
			return
		}
		l.Info("Removed partial output of cancelled job.", slog.String("dir", jobDir))
		return
	}
	if err := os.Remove(jobDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.Debug("Job directory kept.", slog.String("dir", jobDir), slog.Any("reason", err))
	}
}

// failed reports whether an outcome counts against the batch. Missing and
// non-archive inputs are skipped, not failed.
func failed(o extractor.Outcome) bool {
	if o.Err == nil {
		return false
	}
	return !errors.Is(o.Err, extractor.ErrNotFound) && !errors.Is(o.Err, extractor.ErrNotAnArchive)
}

func (c *Coordinator) finishBatch(ctx context.Context, l *slog.Logger, destination string, outcomes []extractor.Outcome, start time.Time) {
	counts := make(map[extractor.Result]int)
	for _, o := range outcomes {
		counts[o.Result]++
	}
	elapsed := time.Since(start)
	msg := fmt.Sprintf("extracted=%d empty=%d missing=%d not_archive=%d failed=%d",
		counts[extractor.ResultExtracted], counts[extractor.ResultEmpty], counts[extractor.ResultMissing],
		counts[extractor.ResultNotArchive], counts[extractor.ResultFailed])
	c.record(ctx, db.Event{Path: destination, FileType: db.FileTypeBatch, Event: db.EventBatchEnd, Message: msg, Duration: &elapsed})
	l.Info("Batch finished.",
		slog.Int("jobs", len(outcomes)),
		slog.Int("extracted", counts[extractor.ResultExtracted]),
		slog.Int("failed", counts[extractor.ResultFailed]),
		slog.Duration("duration", elapsed.Round(time.Millisecond)))
}

func (c *Coordinator) send(ctx context.Context, p Progress) {
	if c.progress == nil {
		return
	}
	select {
	case c.progress <- p:
	case <-ctx.Done():
	}
}

func (c *Coordinator) record(ctx context.Context, ev db.Event) {
	if c.recorder != nil {
		c.recorder.Record(ctx, ev)
	}
}

// JobDirName is the directory an input extracts into: its base name with the
// archive extensions removed and remaining dots flattened.
func JobDirName(path string) string {
	stem, _ := fsutil.SplitExt(filepath.Base(path))
	if s, ext := fsutil.SplitExt(stem); strings.EqualFold(ext, ".tar") {
		stem = s
	}
	stem = strings.ReplaceAll(strings.TrimSpace(stem), ".", "_")
	if stem == "" || stem == "_" {
		return "archive"
	}
	return stem
}

// errorCount counts the errors inside a joined error.
func errorCount(err error) int {
	if err == nil {
		return 0
	}
	var multiErr interface{ Unwrap() []error }
	if errors.As(err, &multiErr) {
		return len(multiErr.Unwrap())
	}
	return 1
}

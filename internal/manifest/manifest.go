// Package manifest records what an extraction left on disk as a parquet
// file (one row per file, with its size and SHA-256) and summarizes such
// files through DuckDB.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"
)

// Entry is one manifest row.
type Entry struct {
	Path      string `parquet:"name=path, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ext       string `parquet:"name=ext, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Size      int64  `parquet:"name=size, type=INT64"`
	ModTimeMs int64  `parquet:"name=mod_time_ms, type=INT64"`
	SHA256    string `parquet:"name=sha256, type=BYTE_ARRAY, convertedtype=UTF8"`
	RunID     string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

// Options controls Build.
type Options struct {
	RunID   string
	Workers int // concurrent hashers; < 1 means 1
	Logger  *slog.Logger
}

// Build hashes every regular file under root and writes the manifest to out.
// Paths are stored relative to root with forward slashes, sorted. The
// manifest file itself is never listed.
func Build(ctx context.Context, root, out string, opts Options) ([]Entry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := logger.With(slog.String("root", root), slog.String("manifest", out))
	start := time.Now()

	absOut, _ := filepath.Abs(out)
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			l.Warn("Skipping unreadable path.", slog.String("path", p), slog.Any("error", err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == absOut {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	entries := make([]Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, p := range paths {
		g.Go(func() error {
			e, err := describe(gctx, root, p)
			if err != nil {
				return err
			}
			e.RunID = opts.RunID
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hash files under %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	if err := write(out, entries); err != nil {
		return nil, err
	}
	l.Info("Manifest written.", slog.Int("files", len(entries)), slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return entries, nil
}

func describe(ctx context.Context, root, path string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	name := filepath.Base(path)
	return Entry{
		Path:      filepath.ToSlash(rel),
		Name:      name,
		Ext:       strings.ToLower(filepath.Ext(name)),
		Size:      info.Size(),
		ModTimeMs: info.ModTime().UnixMilli(),
		SHA256:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func write(out string, entries []Entry) (err error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	fw, err := local.NewLocalFileWriter(out)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", out, err)
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close manifest %s: %w", out, closeErr))
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(Entry), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer for %s: %w", out, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, e := range entries {
		if err := pw.Write(e); err != nil {
			pw.WriteStop()
			return fmt.Errorf("write manifest row %s: %w", e.Path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize manifest %s: %w", out, err)
	}
	return nil
}

package codec

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type openFunc func(io.Reader) (io.ReadCloser, error)

type streamKind struct {
	open openFunc
	// Output suffix replacing the compressed suffix; ".tar" for the tgz style shorthands.
	outExt string
}

func openGzip(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

func openBzip2(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(bzip2.NewReader(r)), nil }

func openLz4(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(r)), nil }

func openXz(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

func openZstd(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

var streamKinds = map[string]streamKind{
	".gz":   {openGzip, ""},
	".tgz":  {openGzip, ".tar"},
	".bz2":  {openBzip2, ""},
	".tbz":  {openBzip2, ".tar"},
	".tbz2": {openBzip2, ".tar"},
	".xz":   {openXz, ""},
	".txz":  {openXz, ".tar"},
	".zst":  {openZstd, ""},
	".tzst": {openZstd, ".tar"},
	".lz4":  {openLz4, ""},
	".tlz4": {openLz4, ".tar"},
}

// StreamOutputName is the file a single-stream decode of name produces:
// "notes.txt.gz" becomes "notes.txt", "backup.tgz" becomes "backup.tar".
func StreamOutputName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem = "data"
	}
	if kind, ok := streamKinds[strings.ToLower(ext)]; ok {
		stem += kind.outExt
	}
	return stem
}

func (c *Codec) decodeStream(ctx context.Context, l *slog.Logger, src, dst string) ([]string, error) {
	kind, ok := streamKinds[strings.ToLower(filepath.Ext(src))]
	if !ok {
		l.Debug("No stream decoder for extension, falling back to signature detection.")
		return c.decodeGeneric(ctx, l, src, dst)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	rc, err := kind.open(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", src, err)
	}
	defer rc.Close()

	path, err := writeMember(ctx, dst, StreamOutputName(filepath.Base(src)), rc, 0o644)
	if err != nil {
		if path != "" {
			return []string{path}, err
		}
		return nil, err
	}
	l.Debug("Stream decoded.", slog.String("output", filepath.Base(path)))
	return []string{path}, nil
}

package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brensch/flatpack/internal/fsutil"
	"github.com/mholt/archives"
)

// decodeGeneric identifies the format by name and signature and lets the
// archives library do the work. It covers rar, 7z and everything the fixed
// families do not.
func (c *Codec) decodeGeneric(ctx context.Context, l *slog.Logger, src, dst string) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, filepath.Base(src), f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(src), ErrUnsupported)
		}
		return nil, fmt.Errorf("identify %s: %w", src, err)
	}
	// Some extractors (7z) need random access, so hand them the file itself.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", src, err)
	}
	l = l.With(slog.String("detected", format.Extension()))

	if ex, ok := format.(archives.Extractor); ok {
		var produced []string
		err := ex.Extract(ctx, f, func(ctx context.Context, fi archives.FileInfo) error {
			if fi.IsDir() {
				if err := makeDir(dst, fi.NameInArchive); err != nil && !errors.Is(err, fsutil.ErrPathTraversal) {
					return err
				}
				return nil
			}
			if !fi.Mode().IsRegular() {
				skipMember(l, fi.NameInArchive, fi.Mode())
				return nil
			}
			rc, err := fi.Open()
			if err != nil {
				return fmt.Errorf("open member %q: %w", fi.NameInArchive, err)
			}
			defer rc.Close()
			path, err := writeMember(ctx, dst, fi.NameInArchive, rc, fi.Mode())
			if path != "" {
				produced = append(produced, path)
			}
			if errors.Is(err, fsutil.ErrPathTraversal) {
				l.Warn("Refusing unsafe member.", slog.String("member", fi.NameInArchive))
				return nil
			}
			return err
		})
		if err != nil {
			return produced, fmt.Errorf("extract %s: %w", filepath.Base(src), err)
		}
		l.Debug("Archive decoded.", slog.Int("files", len(produced)))
		return produced, nil
	}

	if dec, ok := format.(archives.Decompressor); ok {
		rc, err := dec.OpenReader(f)
		if err != nil {
			return nil, fmt.Errorf("open stream %s: %w", src, err)
		}
		defer rc.Close()
		name := filepath.Base(src)
		if ext := format.Extension(); strings.HasSuffix(strings.ToLower(name), ext) && len(name) > len(ext) {
			name = name[:len(name)-len(ext)]
		} else {
			name = StreamOutputName(name)
		}
		path, err := writeMember(ctx, dst, name, rc, 0o644)
		if err != nil {
			if path != "" {
				return []string{path}, err
			}
			return nil, err
		}
		return []string{path}, nil
	}

	return nil, fmt.Errorf("%s (%s): %w", filepath.Base(src), format.Extension(), ErrUnsupported)
}

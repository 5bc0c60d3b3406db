package codec

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brensch/flatpack/internal/fsutil"
)

func (c *Codec) decodeZip(ctx context.Context, l *slog.Logger, src, dst string) ([]string, error) {
	zr, err := zip.OpenReader(src)
	// Non-local names are screened per member by SafeJoin.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open zip %s: %w", src, err)
	}
	defer zr.Close()

	var produced []string
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return produced, err
		}
		info := f.FileInfo()
		if info.IsDir() {
			if err := makeDir(dst, f.Name); err != nil {
				if errors.Is(err, fsutil.ErrPathTraversal) {
					l.Warn("Refusing unsafe member.", slog.String("member", f.Name))
					continue
				}
				return produced, err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			skipMember(l, f.Name, info.Mode())
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return produced, fmt.Errorf("open member %q: %w", f.Name, err)
		}
		path, err := writeMember(ctx, dst, f.Name, rc, info.Mode())
		rc.Close()
		if err != nil {
			if errors.Is(err, fsutil.ErrPathTraversal) {
				l.Warn("Refusing unsafe member.", slog.String("member", f.Name))
				continue
			}
			if path != "" {
				produced = append(produced, path)
			}
			return produced, err
		}
		produced = append(produced, path)
	}
	l.Debug("Zip decoded.", slog.Int("files", len(produced)))
	return produced, nil
}

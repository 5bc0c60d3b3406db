package codec

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brensch/flatpack/internal/fsutil"
)

func (c *Codec) decodeTar(ctx context.Context, l *slog.Logger, r io.Reader, dst string) ([]string, error) {
	tr := tar.NewReader(r)
	var produced []string
	for {
		if err := ctx.Err(); err != nil {
			return produced, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return produced, fmt.Errorf("read tar header: %w", err)
		}

		info := hdr.FileInfo()
		switch {
		case info.IsDir():
			if err := makeDir(dst, hdr.Name); err != nil {
				if errors.Is(err, fsutil.ErrPathTraversal) {
					l.Warn("Refusing unsafe member.", slog.String("member", hdr.Name))
					continue
				}
				return produced, err
			}
		case info.Mode().IsRegular():
			path, err := writeMember(ctx, dst, hdr.Name, tr, info.Mode())
			if err != nil {
				if errors.Is(err, fsutil.ErrPathTraversal) {
					l.Warn("Refusing unsafe member.", slog.String("member", hdr.Name))
					continue
				}
				if path != "" {
					produced = append(produced, path)
				}
				return produced, err
			}
			produced = append(produced, path)
		default:
			skipMember(l, hdr.Name, info.Mode())
		}
	}
	l.Debug("Tar decoded.", slog.Int("files", len(produced)))
	return produced, nil
}

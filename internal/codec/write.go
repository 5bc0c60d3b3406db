package codec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brensch/flatpack/internal/fsutil"
)

// ctxReader aborts a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// writeMember copies r into dst/name, choosing a conflict name if needed.
// It returns the path actually written.
func writeMember(ctx context.Context, dst, name string, r io.Reader, mode fs.FileMode) (string, error) {
	target, err := fsutil.SafeJoin(dst, name)
	if err != nil {
		return "", fmt.Errorf("member %q: %w", name, err)
	}
	if target == filepath.Clean(dst) {
		return "", fmt.Errorf("member %q has no file name", name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create parent for %s: %w", target, err)
	}
	perm := mode.Perm() | 0o600
	out, err := fsutil.CreateUnique(target, perm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, ctxReader{ctx: ctx, r: r}); err != nil {
		out.Close()
		return out.Name(), fmt.Errorf("write %s: %w", out.Name(), err)
	}
	if err := out.Close(); err != nil {
		return out.Name(), fmt.Errorf("close %s: %w", out.Name(), err)
	}
	return out.Name(), nil
}

// makeDir creates a directory member under dst.
func makeDir(dst, name string) error {
	target, err := fsutil.SafeJoin(dst, name)
	if err != nil {
		return fmt.Errorf("member %q: %w", name, err)
	}
	return os.MkdirAll(target, 0o755)
}

func skipMember(l *slog.Logger, name string, mode fs.FileMode) {
	l.Debug("Skipping non-regular member.", slog.String("member", name), slog.String("mode", mode.String()))
}

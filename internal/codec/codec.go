// Package codec decodes archive containers and compressed streams onto the
// filesystem. It never writes outside the destination and never overwrites
// an existing file.
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

	"github.com/mholt/archives"
)

// Family is the closed set of decoding strategies.
type Family string

const (
	FamilyZip     Family = "zip"
	FamilyTar     Family = "tar"
	FamilyStream  Family = "stream"
	FamilyGeneric Family = "generic"
)

// ParseFamily maps a user supplied name onto a Family.
func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case FamilyZip, FamilyTar, FamilyStream, FamilyGeneric:
		return f, nil
	}
	return "", fmt.Errorf("unknown codec family %q (use zip, tar, stream or generic)", s)
}

var (
	// ErrUnsupported means no decoder recognised the input.
	ErrUnsupported = errors.New("codec: unsupported format")
)

// Tags whose content signature is trusted enough to call a file an archive.
// Signature-only formats such as zlib are left out since plain text can match them.
var sniffable = map[string]bool{
	"zip": true, "tar": true, "rar": true, "7z": true,
	"gz": true, "bz2": true, "xz": true, "zst": true, "lz4": true, "lz": true,
}

// Codec decodes files using the family chosen by the caller.
type Codec struct {
	logger *slog.Logger
}

// New returns a Codec. A nil logger discards output.
func New(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Codec{logger: logger}
}

// Decode unpacks src into dst and returns the regular files it created.
// Partially written output is returned alongside any error.
func (c *Codec) Decode(ctx context.Context, family Family, src, dst string) ([]string, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dst, err)
	}
	l := c.logger.With(slog.String("archive", filepath.Base(src)), slog.String("family", string(family)))
	l.Debug("Decoding archive.")

	switch family {
	case FamilyZip:
		return c.decodeZip(ctx, l, src, dst)
	case FamilyTar:
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", src, err)
		}
		defer f.Close()
		return c.decodeTar(ctx, l, f, dst)
	case FamilyStream:
		return c.decodeStream(ctx, l, src, dst)
	default:
		return c.decodeGeneric(ctx, l, src, dst)
	}
}

// Sniff identifies an archive from its leading bytes, ignoring the file name.
// It returns the format tag (e.g. "zip", "tar.gz") when the signature is recognised.
func (c *Codec) Sniff(ctx context.Context, path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, "", f)
	if err != nil {
		if !errors.Is(err, archives.NoMatch) {
			c.logger.Debug("Signature probe failed.", slog.String("path", path), slog.Any("error", err))
		}
		return "", false
	}
	tag := strings.TrimPrefix(format.Extension(), ".")
	parts := strings.Split(tag, ".")
	if !sniffable[parts[len(parts)-1]] {
		return "", false
	}
	return tag, true
}

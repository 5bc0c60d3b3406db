// Package probe answers "is this empty" and "is this an archive" questions
// about paths. None of its functions mutate the filesystem or fail loudly.
package probe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brensch/flatpack/internal/formats"
)

// Sniffer recognises archives by content.
type Sniffer interface {
	Sniff(ctx context.Context, path string) (tag string, ok bool)
}

// Probe classifies paths using the registry first and content signatures second.
type Probe struct {
	registry *formats.Registry
	sniffer  Sniffer
	logger   *slog.Logger
}

func New(registry *formats.Registry, sniffer Sniffer, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Probe{registry: registry, sniffer: sniffer, logger: logger}
}

// IsEmpty reports whether path is an existing regular file of zero length.
// Any stat failure yields false.
func IsEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() == 0
}

// IsEmpty is the package level IsEmpty, logging unexpected stat failures.
func (p *Probe) IsEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("Could not stat file.", slog.String("path", path), slog.Any("error", err))
		}
		return false
	}
	return info.Mode().IsRegular() && info.Size() == 0
}

// IsArchive reports whether path should be handed to a decoder. Zip-based
// document formats are never archives; registered extensions always are;
// anything else is decided by its content signature.
func (p *Probe) IsArchive(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	ext := filepath.Ext(path)
	if p.registry.IsDocumentContainer(ext) {
		return false
	}
	if p.registry.Known(ext) {
		return true
	}
	if p.sniffer == nil {
		return false
	}
	_, ok := p.sniffer.Sniff(ctx, path)
	return ok
}

// Format returns the format tag for path: the registered extension, else the
// sniffed signature, else "generic".
func (p *Probe) Format(ctx context.Context, path string) string {
	if p.registry.Known(filepath.Ext(path)) {
		return p.registry.Tag(path)
	}
	if p.sniffer != nil {
		if tag, ok := p.sniffer.Sniff(ctx, path); ok {
			return tag
		}
	}
	return "generic"
}

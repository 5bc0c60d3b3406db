// Package textextract pulls plain text out of documents, keyed by file
// extension. Extraction never fails its caller: anything that cannot be
// read yields an empty string and a log line.
package textextract

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Parser returns the text of the file at path.
type Parser func(ctx context.Context, path string) (string, error)

type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	logger  *slog.Logger
}

// New returns a registry loaded with the built-in parsers.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{parsers: make(map[string]Parser), logger: logger}

	for _, ext := range []string{".txt", ".md", ".log"} {
		r.parsers[ext] = parseText
	}
	r.parsers[".csv"] = parseCSV
	r.parsers[".xml"] = parseXML
	r.parsers[".html"] = parseHTML
	r.parsers[".htm"] = parseHTML
	r.parsers[".xlsx"] = parseXLSX
	r.parsers[".xlsm"] = parseXLSX
	r.parsers[".ods"] = parseODS
	for _, ext := range []string{".pdf", ".doc", ".docx", ".pptx", ".odt", ".rtf", ".pages"} {
		r.parsers[ext] = parseDocconv
	}
	return r
}

func normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register adds or replaces the parser for ext.
func (r *Registry) Register(ext string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normalize(ext)] = p
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a parser is registered for path's extension.
func (r *Registry) Supports(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.parsers[normalize(filepath.Ext(path))]
	return ok
}

// Extract returns the text of path, or "" when the file is missing, has no
// parser, or its parser fails.
func (r *Registry) Extract(ctx context.Context, path string) string {
	l := r.logger.With(slog.String("path", path))
	if _, err := os.Stat(path); err != nil {
		l.Warn("File not found.", slog.Any("error", err))
		return ""
	}
	ext := normalize(filepath.Ext(path))
	r.mu.RLock()
	p, ok := r.parsers[ext]
	r.mu.RUnlock()
	if !ok {
		l.Warn("No parser available for extension.", slog.String("ext", ext))
		return ""
	}
	text, err := p(ctx, path)
	if err != nil {
		l.Warn("Text extraction failed.", slog.Any("error", err))
		return ""
	}
	return text
}

// ExtractFolder extracts every file under root in lexical order and joins the
// non-empty results with single spaces. Files without a parser are skipped.
func (r *Registry) ExtractFolder(ctx context.Context, root string) string {
	l := r.logger.With(slog.String("root", root))
	if _, err := os.Stat(root); err != nil {
		l.Warn("Folder not found.", slog.Any("error", err))
		return ""
	}
	var parts []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			l.Warn("Skipping unreadable path.", slog.String("path", p), slog.Any("error", err))
			return nil
		}
		if !d.Type().IsRegular() || !r.Supports(p) {
			return nil
		}
		if text := strings.TrimSpace(r.Extract(ctx, p)); text != "" {
			parts = append(parts, text)
		}
		return ctx.Err()
	})
	if err != nil {
		l.Warn("Folder extraction stopped early.", slog.Any("error", err))
	}
	l.Debug("Folder extracted.", slog.Int("files_with_text", len(parts)))
	return strings.Join(parts, " ")
}

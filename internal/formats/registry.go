// Package formats maps file extensions onto decode handlers.
package formats

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/brensch/flatpack/internal/codec"
)

// FamilyCustom tags handlers registered as plain functions.
const FamilyCustom codec.Family = "custom"

// Handler decodes one archive into a destination directory and returns the
// files it produced.
type Handler interface {
	Decode(ctx context.Context, src, dst string) ([]string, error)
	Family() codec.Family
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, src, dst string) ([]string, error)

func (f HandlerFunc) Decode(ctx context.Context, src, dst string) ([]string, error) {
	return f(ctx, src, dst)
}

func (f HandlerFunc) Family() codec.Family { return FamilyCustom }

type familyHandler struct {
	codec  *codec.Codec
	family codec.Family
}

func (h familyHandler) Decode(ctx context.Context, src, dst string) ([]string, error) {
	return h.codec.Decode(ctx, h.family, src, dst)
}

func (h familyHandler) Family() codec.Family { return h.family }

// Built-in routes. Formats only external tools can unpack (iso, deb, rpm,
// cab, arj, ...) are not listed so they are left alone rather than lost.
var defaultFamilies = map[codec.Family][]string{
	codec.FamilyZip:     {".zip", ".jar", ".cbz", ".war", ".ear"},
	codec.FamilyTar:     {".tar", ".cbt"},
	codec.FamilyStream:  {".gz", ".tgz", ".bz2", ".tbz", ".tbz2", ".xz", ".txz", ".zst", ".tzst", ".lz4", ".tlz4"},
	codec.FamilyGeneric: {".rar", ".cbr", ".7z", ".cb7", ".br", ".sz", ".lz"},
}

// Zip-based document formats. They share the zip signature but are documents.
var documentContainers = []string{".docx", ".docm", ".xlsx", ".xlsm", ".pptx", ".odt", ".ods", ".odp", ".epub"}

// Registry is a concurrency-safe extension to handler table with a generic fallback.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	documents map[string]bool
	fallback  Handler
	codec     *codec.Codec
}

// New returns a registry populated with the built-in routes.
func New(c *codec.Codec) *Registry {
	r := &Registry{
		handlers:  make(map[string]Handler),
		documents: make(map[string]bool),
		fallback:  familyHandler{codec: c, family: codec.FamilyGeneric},
		codec:     c,
	}
	for family, exts := range defaultFamilies {
		for _, ext := range exts {
			r.handlers[Normalize(ext)] = familyHandler{codec: c, family: family}
		}
	}
	for _, ext := range documentContainers {
		r.documents[ext] = true
	}
	return r
}

// Normalize lower-cases an extension and ensures a leading dot.
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register binds ext to h, replacing any previous binding.
func (r *Registry) Register(ext string, h Handler) {
	ext = Normalize(ext)
	if ext == "" || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ext] = h
	delete(r.documents, ext)
}

// RegisterFamily binds ext to one of the codec families.
func (r *Registry) RegisterFamily(ext string, family codec.Family) {
	r.Register(ext, familyHandler{codec: r.codec, family: family})
}

// Resolve returns the handler for ext, or the generic fallback. It never fails.
func (r *Registry) Resolve(ext string) Handler {
	ext = Normalize(ext)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[ext]; ok {
		return h
	}
	return r.fallback
}

// ResolvePath is Resolve on the extension of path.
func (r *Registry) ResolvePath(path string) Handler {
	return r.Resolve(filepath.Ext(path))
}

// Known reports whether ext has an explicit binding.
func (r *Registry) Known(ext string) bool {
	ext = Normalize(ext)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[ext]
	return ok
}

// IsDocumentContainer reports whether ext is a zip-based document format.
func (r *Registry) IsDocumentContainer(ext string) bool {
	ext = Normalize(ext)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.documents[ext]
}

// Extensions lists the explicitly bound extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Tag is the format tag recorded for a path: its bound extension without
// the dot, or "generic".
func (r *Registry) Tag(path string) string {
	ext := Normalize(filepath.Ext(path))
	if r.Known(ext) {
		return strings.TrimPrefix(ext, ".")
	}
	return string(codec.FamilyGeneric)
}

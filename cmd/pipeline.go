package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brensch/flatpack/internal/codec"
	"github.com/brensch/flatpack/internal/config"
	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/extractor"
	"github.com/brensch/flatpack/internal/formats"
	"github.com/brensch/flatpack/internal/probe"
)

// pipeline bundles the components one extraction run shares.
type pipeline struct {
	registry  *formats.Registry
	probe     *probe.Probe
	extractor *extractor.Extractor
	ledger    *db.Ledger
}

func newPipeline(cfg config.Config, routes []string, ledger *db.Ledger, logger *slog.Logger) (*pipeline, error) {
	c := codec.New(logger)
	registry := formats.New(c)

	merged, err := parseRoutes(cfg.Routes, routes)
	if err != nil {
		return nil, err
	}
	exts := make([]string, 0, len(merged))
	for ext := range merged {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		registry.RegisterFamily(ext, merged[ext])
		logger.Debug("Registered extension route.", slog.String("ext", ext), slog.String("family", string(merged[ext])))
	}

	p := probe.New(registry, c, logger)
	ex := extractor.New(p, registry,
		extractor.WithRecorder(ledger),
		extractor.WithLogger(logger),
		extractor.WithMaxDepth(cfg.MaxDepth),
	)
	return &pipeline{registry: registry, probe: p, extractor: ex, ledger: ledger}, nil
}

// parseRoutes merges config routes with "ext=family" flag values. Flags win.
func parseRoutes(fromConfig map[string]string, fromFlags []string) (map[string]codec.Family, error) {
	out := make(map[string]codec.Family)
	for ext, fam := range fromConfig {
		family, err := codec.ParseFamily(fam)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", ext, err)
		}
		out[formats.Normalize(ext)] = family
	}
	for _, r := range fromFlags {
		ext, fam, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(ext) == "" {
			return nil, fmt.Errorf("invalid route %q (want ext=family)", r)
		}
		family, err := codec.ParseFamily(fam)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", ext, err)
		}
		out[formats.Normalize(ext)] = family
	}
	return out, nil
}

// absPaths resolves args so ledger rows for the same input always match.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		p, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		out[i] = p
	}
	return out, nil
}

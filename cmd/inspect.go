package cmd

import (
	"fmt"
	"os"

	"github.com/brensch/flatpack/internal/manifest"

	"github.com/spf13/cobra"
)

// inspectCmd summarizes manifests written by 'extract --manifest'.
var inspectCmd = &cobra.Command{
	Use:   "inspect [manifests...]",
	Short: "Summarize Parquet manifests using DuckDB",
	Long:  `Reads each manifest through DuckDB and prints its schema, totals, duplicate content count and per-extension breakdown. With no arguments the configured manifest_path is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		paths := args
		if len(paths) == 0 {
			if cfg.ManifestPath == "" {
				return fmt.Errorf("no manifest given and manifest_path is not configured")
			}
			paths = []string{cfg.ManifestPath}
		}

		var failed int
		for _, p := range paths {
			s, err := manifest.Inspect(cmd.Context(), getDB(), p)
			if err != nil {
				logger.Error("Failed to inspect manifest.", "path", p, "error", err)
				failed++
				continue
			}
			s.Print(os.Stdout)
			fmt.Println()
		}
		if failed > 0 {
			return fmt.Errorf("inspection failed for %d of %d manifests", failed, len(paths))
		}
		return nil
	},
}

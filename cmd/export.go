package cmd

import (
	"fmt"
	"log/slog"

	"github.com/brensch/flatpack/internal/db"

	"github.com/spf13/cobra"
)

var (
	exportDir string
	exportRun string
)

// exportCmd copies the event log out to Parquet.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save the event log to a Parquet file",
	Long: `Copies the DuckDB event log, or the events of a single run with --run, into a
Parquet file in the export directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		dir := cfg.ExportDir
		if exportDir != "" {
			dir = exportDir
		}
		if dir == "" {
			dir = "."
		}

		logger.Info("Starting event log export.", slog.String("db_path", cfg.DbPath), slog.String("output_dir", dir))
		path, err := db.ExportEventLog(cmd.Context(), getDB(), dir, exportRun, logger)
		if err != nil {
			logger.Error("Export failed.", "error", err)
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (defaults to export_dir from config, then the working directory)")
	exportCmd.Flags().StringVar(&exportRun, "run", "", "Only export events from this run id")
}

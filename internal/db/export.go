package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ExportEventLog copies the event log (optionally one run) to a Parquet file
// in outDir and returns its path.
func ExportEventLog(ctx context.Context, db *sql.DB, outDir, runID string, logger *slog.Logger) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory '%s': %w", outDir, err)
	}

	name := "extract_event_log.parquet"
	source := "extract_event_log"
	if runID != "" {
		name = fmt.Sprintf("extract_event_log_%s.parquet", runID)
		source = fmt.Sprintf("(SELECT * FROM extract_event_log WHERE run_id = '%s')", strings.ReplaceAll(runID, "'", "''"))
	}
	outputFilePath := filepath.Join(outDir, name)
	duckdbFilePath := strings.ReplaceAll(outputFilePath, `\`, `/`) // DuckDB needs forward slashes

	copySQL := fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET);`,
		source,
		strings.ReplaceAll(duckdbFilePath, "'", "''"),
	)
	logger.Debug("Executing COPY TO command.", slog.String("output_path", outputFilePath))

	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return "", fmt.Errorf("export event log: %w", err)
	}
	logger.Info("Event log exported.", slog.String("output_path", outputFilePath))
	return outputFilePath, nil
}

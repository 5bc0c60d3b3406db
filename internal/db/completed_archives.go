package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// GetCompletedArchives returns every input path that has a successful
// extract_end event in any run.
func GetCompletedArchives(ctx context.Context, dbConnPool *sql.DB, logger *slog.Logger) (map[string]bool, error) {
	logger.Debug("Querying database for completed archives...")
	completed := make(map[string]bool)

	query := `
		SELECT DISTINCT path
		FROM extract_event_log
		WHERE filetype = ? AND event = ?;
	`
	rows, err := dbConnPool.QueryContext(ctx, query, FileTypeArchive, EventExtractEnd)
	if err != nil {
		logger.Error("Failed to query for completed archives", "error", err, "filetype", FileTypeArchive, "event", EventExtractEnd)
		return nil, fmt.Errorf("query completed archives: %w", err)
	}
	defer rows.Close()

	var scanErrors error
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			scanErrors = errors.Join(scanErrors, fmt.Errorf("scan completed archive path: %w", err))
			continue
		}
		if path != "" {
			completed[path] = true
		}
	}
	if err := rows.Err(); err != nil {
		scanErrors = errors.Join(scanErrors, fmt.Errorf("iterate completed archives: %w", err))
		return completed, scanErrors
	}

	logger.Debug("Found completed archives in DB.", slog.Int("count", len(completed)))
	return completed, scanErrors
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Driver
)

// Constants for event types
const (
	EventBatchStart    = "batch_start"
	EventBatchEnd      = "batch_end"
	EventExtractStart  = "extract_start"
	EventExtractEnd    = "extract_end"
	EventNested        = "nested_extract"
	EventEmpty         = "empty_deleted"
	EventMissing       = "missing"
	EventNotArchive    = "not_archive"
	EventSkipped       = "skipped"
	EventError         = "error"
	EventMoved         = "moved"
	EventDeleted       = "deleted"
	EventDirRemoved    = "dir_removed"
	EventManifest      = "manifest_written"
	EventDownloadStart = "download_start"
	EventDownloadEnd   = "download_end"
)

// Constants for file types
const (
	FileTypeArchive = "archive"
	FileTypeFile    = "file"
	FileTypeDir     = "dir"
	FileTypeBatch   = "batch"
)

// Schema SQL
const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS extract_event_log_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS extract_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('extract_event_log_id_seq'),
    run_id          VARCHAR NOT NULL,
    path            VARCHAR NOT NULL,      -- input, archive or organized file path
    filetype        VARCHAR NOT NULL,      -- 'archive', 'file', 'dir', 'batch'
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    format          VARCHAR,               -- format tag, e.g. 'zip', 'tgz', 'generic'
    output_path     VARCHAR,               -- destination dir or new location
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_extract_event_log_path ON extract_event_log (path, filetype);
CREATE INDEX IF NOT EXISTS idx_extract_event_log_event_time ON extract_event_log (event, event_timestamp);
CREATE INDEX IF NOT EXISTS idx_extract_event_log_run ON extract_event_log (run_id);
`

// InitializeSchema creates the sequence and tables in the correct order.
func InitializeSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSequenceSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	_, err = db.Exec(schemaTableSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// Event is one row of the extraction event log.
type Event struct {
	RunID      string
	Path       string
	FileType   string
	Event      string
	Format     string
	OutputPath string
	Message    string
	Duration   *time.Duration
}

// LogFileEvent inserts a new event record into the log.
func LogFileEvent(ctx context.Context, db *sql.DB, ev Event) error {
	query := `
        INSERT INTO extract_event_log (run_id, path, filetype, event, event_timestamp, format, output_path, message, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	var durationMs sql.NullInt64
	if ev.Duration != nil {
		durationMs = sql.NullInt64{Int64: ev.Duration.Milliseconds(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		ev.RunID,
		ev.Path,
		ev.FileType,
		ev.Event,
		time.Now().UTC(),
		sql.NullString{String: ev.Format, Valid: ev.Format != ""},
		sql.NullString{String: ev.OutputPath, Valid: ev.OutputPath != ""},
		sql.NullString{String: ev.Message, Valid: ev.Message != ""},
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", ev.Event, ev.Path, err)
	}
	return nil
}

// GetLatestFileEvent retrieves the most recent event record for a path.
func GetLatestFileEvent(ctx context.Context, db *sql.DB, path, filetype string) (event string, timestamp time.Time, message string, found bool, err error) {
	query := `
        SELECT event, event_timestamp, message
        FROM extract_event_log
        WHERE path = ? AND filetype = ?
        ORDER BY event_timestamp DESC, log_id DESC
        LIMIT 1;
    `
	var msg sql.NullString
	row := db.QueryRowContext(ctx, query, path, filetype)
	err = row.Scan(&event, &timestamp, &msg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, "", false, nil
		}
		return "", time.Time{}, "", false, fmt.Errorf("failed query latest event for '%s' (%s): %w", path, filetype, err)
	}
	return event, timestamp, msg.String, true, nil
}

// GetCompletionStatusBatch checks a list of paths for a specific completion event
// using a temporary table approach compatible with DuckDB.
// Returns a map where the key is the path and the value is true if the event exists.
func GetCompletionStatusBatch(ctx context.Context, db *sql.DB, paths []string, filetype string, completionEvent string) (map[string]bool, error) {
	completed := make(map[string]bool)
	if len(paths) == 0 {
		return completed, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for batch check: %w", err)
	}
	defer tx.Rollback() // Rollback is safe even after commit

	tempTableName := fmt.Sprintf("temp_paths_to_check_%d", time.Now().UnixNano())
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`CREATE TEMP TABLE %s (path TEXT PRIMARY KEY);`, tempTableName)); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil, fmt.Errorf("failed to create temp table %s: %w", tempTableName, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO %s (path) VALUES (?)`, tempTableName))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement for temp table %s: %w", tempTableName, err)
	}
	for _, p := range paths {
		select {
		case <-ctx.Done():
			stmt.Close()
			return nil, ctx.Err()
		default:
			if _, err := stmt.ExecContext(ctx, p); err != nil {
				stmt.Close()
				return nil, fmt.Errorf("failed to insert path '%s' into temp table %s: %w", p, tempTableName, err)
			}
		}
	}
	if err = stmt.Close(); err != nil {
		return nil, fmt.Errorf("failed to close insert statement for %s: %w", tempTableName, err)
	}

	query := fmt.Sprintf(`
        SELECT DISTINCT el.path
        FROM extract_event_log el
        JOIN %s tpc ON el.path = tpc.path
        WHERE el.filetype = ?
          AND el.event = ?;
    `, tempTableName)
	rows, err := tx.QueryContext(ctx, query, filetype, completionEvent)
	if err != nil {
		return nil, fmt.Errorf("failed batch query status joining temp table %s (event=%s, type=%s): %w", tempTableName, completionEvent, filetype, err)
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed scanning batch status row: %w", err)
		}
		completed[p] = true
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating batch status results: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction for batch check: %w", err)
	}
	return completed, nil
}

// RunEventCounts tallies events for one run, keyed by event type.
func RunEventCounts(ctx context.Context, db *sql.DB, runID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT event, COUNT(*) FROM extract_event_log WHERE run_id = ? GROUP BY event;`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events for run %s: %w", runID, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var event string
		var n int
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fmt.Errorf("failed scanning event count row: %w", err)
		}
		counts[event] = n
	}
	return counts, rows.Err()
}

// DisplayFileHistory queries and prints the event log.
func DisplayFileHistory(ctx context.Context, db *sql.DB, filetypeFilter, eventFilter, runFilter string, limit int) error {
	query := `
        SELECT run_id, path, filetype, event, event_timestamp, format, message, duration_ms, output_path
        FROM extract_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if filetypeFilter != "" {
		conditions = append(conditions, fmt.Sprintf("filetype = $%d", argCounter))
		args = append(args, filetypeFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if runFilter != "" {
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", argCounter))
		args = append(args, runFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	fmt.Printf("--- Event Log History (Limit %d) ---\n", limit)
	fmt.Printf("%-8s | %-50s | %-8s | %-15s | %-8s | %-25s | %-10s | %s\n", "Run", "Path", "Type", "Event", "Format", "Timestamp (UTC)", "DurationMS", "Message/Details")
	fmt.Println(strings.Repeat("-", 160))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w \n Query: %s \n Args: %v", err, query, args)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var runID, path, filetype, event string
		var timestamp time.Time
		var format, message, outputPath sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&runID, &path, &filetype, &event, &timestamp, &format, &message, &durationMs, &outputPath); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}

		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}
		details := message.String
		if outputPath.Valid && outputPath.String != "" {
			details += fmt.Sprintf(" (Output: %s)", filepath.Base(outputPath.String))
		}
		shortRun := runID
		if len(shortRun) > 8 {
			shortRun = shortRun[len(shortRun)-8:]
		}

		fmt.Printf("%-8s | %-50s | %-8s | %-15s | %-8s | %-25s | %-10s | %s\n",
			shortRun, path, filetype, event, format.String, timestamp.Format(time.RFC3339), durationStr, details)
		count++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Printf("Displayed %d records.\n", count)
	return nil
}

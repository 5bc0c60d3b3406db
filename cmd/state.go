package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brensch/flatpack/internal/db"

	"github.com/spf13/cobra"
)

var (
	stateLimit       int
	stateFilterEvent string
	stateFilterRun   string
	statePath        string
	stateCompleted   bool
)

// stateCmd shows the extraction event log.
var stateCmd = &cobra.Command{
	Use:   "state [filetype]",
	Short: "View the event log history (archives, files, dirs or batches)",
	Long: `Queries the DuckDB event log and displays recent events.
Specify 'archive', 'file', 'dir' or 'batch' as an optional argument to filter by
file type. Use --path for the latest event of a single path (archive unless a
file type is given) and --completed to
list every input that has been fully extracted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		dbConn := getDB()
		ctx := context.Background()

		fileTypeFilter := ""
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "archive", "archives":
				fileTypeFilter = db.FileTypeArchive
			case "file", "files":
				fileTypeFilter = db.FileTypeFile
			case "dir", "dirs":
				fileTypeFilter = db.FileTypeDir
			case "batch", "batches":
				fileTypeFilter = db.FileTypeBatch
			default:
				return fmt.Errorf("invalid filetype filter: %s (use 'archive', 'file', 'dir' or 'batch')", args[0])
			}
		}

		if statePath != "" {
			p, err := filepath.Abs(statePath)
			if err != nil {
				return err
			}
			ft := fileTypeFilter
			if ft == "" {
				ft = db.FileTypeArchive
			}
			event, ts, msg, found, err := db.GetLatestFileEvent(ctx, dbConn, p, ft)
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("No events for %s.\n", p)
				return nil
			}
			fmt.Printf("%s: %s at %s %s\n", p, event, ts.Format(time.RFC3339), msg)
			return nil
		}

		if stateCompleted {
			done, err := db.GetCompletedArchives(ctx, dbConn, logger)
			if err != nil {
				return err
			}
			paths := make([]string, 0, len(done))
			for p := range done {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Println(p)
			}
			fmt.Printf("%d completed inputs.\n", len(paths))
			return nil
		}

		logger.Debug("Querying database event log.", "type_filter", fileTypeFilter, "event_filter", stateFilterEvent, "run_filter", stateFilterRun, "limit", stateLimit)
		if err := db.DisplayFileHistory(ctx, dbConn, fileTypeFilter, stateFilterEvent, stateFilterRun, stateLimit); err != nil {
			logger.Error("Failed to display state history.", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event type (e.g., extract_end, error, moved)")
	stateCmd.Flags().StringVarP(&stateFilterRun, "run", "r", "", "Filter records by run id")
	stateCmd.Flags().StringVar(&statePath, "path", "", "Show the latest event for one path")
	stateCmd.Flags().BoolVar(&stateCompleted, "completed", false, "List inputs with a successful extraction")
}

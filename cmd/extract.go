package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brensch/flatpack/internal/app"
	"github.com/brensch/flatpack/internal/config"
	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/downloader"
	"github.com/brensch/flatpack/internal/extractor"
	"github.com/brensch/flatpack/internal/manifest"
	"github.com/brensch/flatpack/internal/orchestrator"
	"github.com/brensch/flatpack/internal/organizer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	extractOrganize      bool
	extractNoOrganize    bool
	extractManifest      string
	extractTUI           bool
	extractSkipCompleted bool
	extractRoutes        []string
	extractListFormats   bool
	extractDownloadDir   string
)

// extractCmd runs a batch of inputs through the extraction pipeline.
var extractCmd = &cobra.Command{
	Use:   "extract [archives...]",
	Short: "Recursively extract archives into the destination directory",
	Long: `Extracts each input into its own folder under the destination directory,
decoding nested archives until none remain. Consumed archives are deleted and
empty inputs are removed.

Inputs may be local paths or http(s) URLs; URLs are first downloaded into the
download directory.

Use --organize to flatten each output folder afterwards, --manifest to write a
Parquet manifest of the results, and --skip-completed to ignore inputs the
event log already marks as extracted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		conn := getDB()
		cfg := getConfig()

		if cmd.Flags().Changed("organize") {
			cfg.Organize = extractOrganize
		}
		if extractNoOrganize {
			cfg.Organize = false
		}
		if extractManifest != "" {
			cfg.ManifestPath = extractManifest
		}
		if extractDownloadDir != "" {
			cfg.DownloadDir = extractDownloadDir
		}

		ledger := db.NewLedger(conn, logger)
		p, err := newPipeline(cfg, extractRoutes, ledger, logger)
		if err != nil {
			return err
		}
		if extractListFormats {
			fmt.Println(strings.Join(p.registry.Extensions(), " "))
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("no inputs given")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		inputs, err := resolveInputs(ctx, cfg, args, ledger, logger)
		if err != nil {
			return err
		}
		if extractSkipCompleted {
			inputs, err = dropCompleted(ctx, conn, inputs, logger)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				logger.Info("All inputs already extracted.")
				return nil
			}
		}

		l := logger.With(slog.String("run_id", ledger.RunID()))
		l.Info("Starting extraction.", slog.Int("inputs", len(inputs)), slog.String("destination", cfg.DestinationDir), slog.Int("workers", cfg.NumWorkers))

		var outcomes []extractor.Outcome
		var batchErr error
		run := func(ctx context.Context, progress chan<- orchestrator.Progress) error {
			opts := []orchestrator.Option{
				orchestrator.WithRecorder(ledger),
				orchestrator.WithLogger(l),
			}
			if progress != nil {
				opts = append(opts, orchestrator.WithProgress(progress))
			}
			coord := orchestrator.New(p.extractor, p.probe, cfg, opts...)
			outcomes, batchErr = coord.RunBatchOutcomes(ctx, inputs, cfg.DestinationDir)
			return batchErr
		}

		if extractTUI {
			if logOutput == "" || strings.EqualFold(logOutput, "stderr") {
				// The progress view owns the terminal.
				l = slog.New(slog.NewTextHandler(io.Discard, nil))
			}
			model := app.NewAppModel(ctx, "flatpack", "Extract", run, l)
			_, err := tea.NewProgram(model).Run()
			model.Wait()
			if err != nil {
				return fmt.Errorf("progress view failed: %w", err)
			}
			if model.Quitting {
				return context.Canceled
			}
		} else {
			_ = run(ctx, nil)
		}

		if cfg.Organize {
			organizeOutputs(ctx, outcomes, ledger, l)
		}
		if cfg.ManifestPath != "" {
			writeManifest(ctx, cfg, ledger, l)
		}

		printRunSummary(ctx, conn, ledger.RunID(), outcomes)
		if batchErr != nil {
			return fmt.Errorf("extraction finished with errors: %w", batchErr)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractOrganize, "organize", true, "Flatten each output folder after extraction")
	extractCmd.Flags().BoolVar(&extractNoOrganize, "no-organize", false, "Leave output folders as extracted")
	extractCmd.Flags().StringVar(&extractManifest, "manifest", "", "Write a Parquet manifest of the destination to this path")
	extractCmd.Flags().BoolVar(&extractTUI, "tui", false, "Show an interactive progress view")
	extractCmd.Flags().BoolVar(&extractSkipCompleted, "skip-completed", false, "Skip inputs already extracted in a previous run")
	extractCmd.Flags().StringSliceVar(&extractRoutes, "route", nil, "Extra extension route as ext=family (zip, tar, stream, generic); repeatable")
	extractCmd.Flags().StringVar(&extractDownloadDir, "download-dir", "", "Directory URL inputs are downloaded to (default from config)")
	extractCmd.Flags().BoolVar(&extractListFormats, "list-formats", false, "Print the routed extensions and exit")
}

// resolveInputs makes local paths absolute and downloads URL inputs, keeping
// argument order. A failed download is reported and left out of the batch.
func resolveInputs(ctx context.Context, cfg config.Config, args []string, ledger *db.Ledger, logger *slog.Logger) ([]string, error) {
	var urls []string
	for _, a := range args {
		if downloader.IsURL(a) {
			urls = append(urls, a)
		}
	}
	var fetched []string
	if len(urls) > 0 {
		d := downloader.New(cfg.DownloadDir, downloader.WithRecorder(ledger), downloader.WithLogger(logger))
		var err error
		fetched, err = d.FetchAll(ctx, urls)
		if err != nil {
			logger.Error("Some downloads failed.", "error", err)
		}
	}

	inputs := make([]string, 0, len(args))
	next := 0
	for _, a := range args {
		if downloader.IsURL(a) {
			if p := fetched[next]; p != "" {
				inputs = append(inputs, p)
			}
			next++
			continue
		}
		p, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		inputs = append(inputs, p)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no usable inputs")
	}
	return inputs, nil
}

// dropCompleted filters out inputs with a prior extract_end event.
func dropCompleted(ctx context.Context, conn *sql.DB, inputs []string, logger *slog.Logger) ([]string, error) {
	done, err := db.GetCompletionStatusBatch(ctx, conn, inputs, db.FileTypeArchive, db.EventExtractEnd)
	if err != nil {
		return nil, fmt.Errorf("check completed inputs: %w", err)
	}
	remaining := inputs[:0:0]
	for _, in := range inputs {
		if done[in] {
			logger.Info("Skipping completed input.", slog.String("path", in))
			continue
		}
		remaining = append(remaining, in)
	}
	return remaining, nil
}

// organizeOutputs flattens the output folder of every input that produced one.
func organizeOutputs(ctx context.Context, outcomes []extractor.Outcome, ledger *db.Ledger, logger *slog.Logger) {
	org := organizer.New(logger, ledger)
	for _, out := range outcomes {
		if out.Result != extractor.ResultExtracted || out.Destination == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		s := org.Organize(ctx, out.Destination)
		logger.Info("Output organized.",
			slog.String("dir", out.Destination),
			slog.Int("moved", s.Moved),
			slog.Int("deleted", s.Deleted),
			slog.Int("dirs_removed", s.DirsRemoved),
			slog.Int("failures", s.Failures))
	}
}

func writeManifest(ctx context.Context, cfg config.Config, ledger *db.Ledger, logger *slog.Logger) {
	start := time.Now()
	entries, err := manifest.Build(ctx, cfg.DestinationDir, cfg.ManifestPath, manifest.Options{
		RunID:   ledger.RunID(),
		Workers: cfg.NumWorkers,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("Failed to write manifest.", slog.String("path", cfg.ManifestPath), slog.Any("error", err))
		ledger.Record(ctx, db.Event{Path: cfg.ManifestPath, FileType: db.FileTypeFile, Event: db.EventError, Message: err.Error()})
		return
	}
	elapsed := time.Since(start)
	ledger.Record(ctx, db.Event{
		Path:       cfg.DestinationDir,
		FileType:   db.FileTypeDir,
		Event:      db.EventManifest,
		OutputPath: cfg.ManifestPath,
		Message:    fmt.Sprintf("%d files", len(entries)),
		Duration:   &elapsed,
	})
}

func printRunSummary(ctx context.Context, conn *sql.DB, runID string, outcomes []extractor.Outcome) {
	byResult := make(map[extractor.Result]int)
	for _, o := range outcomes {
		byResult[o.Result]++
	}
	fmt.Printf("--- Run %s ---\n", runID)
	results := make([]string, 0, len(byResult))
	for r := range byResult {
		results = append(results, string(r))
	}
	sort.Strings(results)
	for _, r := range results {
		fmt.Printf("%-12s %d\n", r, byResult[extractor.Result(r)])
	}
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Printf("  %s: %v\n", filepath.Base(o.Path), o.Err)
		}
	}

	counts, err := db.RunEventCounts(ctx, conn, runID)
	if err != nil || len(counts) == 0 {
		return
	}
	events := make([]string, 0, len(counts))
	for e := range counts {
		events = append(events, e)
	}
	sort.Strings(events)
	fmt.Println("Events:")
	for _, e := range events {
		fmt.Printf("  %-16s %d\n", e, counts[e])
	}
}

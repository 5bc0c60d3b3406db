package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/flatpack/internal/config"
	"github.com/brensch/flatpack/internal/db"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/spf13/cobra"
)

var (
	// Config flags - bound in init()
	cfgFile    string
	destDir    string
	dbPath     string
	workers    int
	jobTimeout time.Duration
	maxDepth   int
	logFormat  string
	logLevel   string
	logOutput  string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	dbConn     *sql.DB
	appConfig  config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flatpack",
	Short: "Recursively unpack archives and flatten the results.",
	Long: `Flatpack extracts archives in parallel, decoding every archive nested inside
them until none remain, then optionally flattens each output tree into a single
directory with normalized, collision-free names.

Every step is recorded in a DuckDB event log. The 'extract' command does the
work; 'organize', 'text', 'state', 'export' and 'inspect' operate on its output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		logger, err := newLogger(logLevel, logFormat, logOutput)
		if err != nil {
			return err
		}
		rootLogger = logger
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized.", "level", logLevel, "format", logFormat, "output", logOutput)

		// --- 2. Load Config: defaults, file, environment, then explicit flags ---
		cfg := config.Default()
		if cfgFile != "" {
			if cfg, err = config.LoadFile(cfgFile); err != nil {
				return err
			}
		}
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
		applyFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appConfig = cfg
		rootLogger.Debug("Configuration loaded.", slog.Any("config", appConfig))

		if appConfig.DbPath != ":memory:" {
			dbDir := filepath.Dir(appConfig.DbPath)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}

		// --- 3. Initialize DuckDB Connection & Schema ---
		rootLogger.Debug("Initializing DuckDB connection.", "path", appConfig.DbPath)
		dbConn, err = openDB(appConfig.DbPath)
		if err != nil {
			return err
		}
		rootLogger.Debug("Database schema initialized.")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			rootLogger.Debug("Closing DuckDB connection.")
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly.", "error", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)

	err := rootCmd.Execute()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed.", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (flags override it)")
	rootCmd.PersistentFlags().StringVarP(&destDir, "destination", "o", config.DefaultDestinationDir, "Directory receiving one output folder per input")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", config.DefaultDbPath, "Path to DuckDB state database file (:memory: for in-memory)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultNumWorkers, "Number of concurrent extraction jobs")
	rootCmd.PersistentFlags().DurationVar(&jobTimeout, "job-timeout", 0, "Per-input time limit (0 for none)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "Deepest nesting level to decode (0 for unbounded)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"
}

// applyFlags copies flags the user set explicitly onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("destination") {
		cfg.DestinationDir = destDir
	}
	if flags.Changed("db-path") {
		cfg.DbPath = dbPath
	}
	if flags.Changed("workers") {
		cfg.NumWorkers = workers
	}
	if flags.Changed("job-timeout") {
		cfg.JobTimeout = jobTimeout
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = maxDepth
	}
}

func newLogger(level, format, output string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var logWriter io.Writer = os.Stderr
	switch strings.ToLower(output) {
	case "", "stderr":
	case "stdout":
		logWriter = os.Stdout
	default:
		// Left open for the life of the process.
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		logWriter = f
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(logWriter, opts)), nil
	}
	return slog.New(slog.NewTextHandler(logWriter, opts)), nil
}

func openDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database (%s): %w", path, err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping duckdb database (%s): %w", path, err)
	}
	if err := db.InitializeSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return conn, nil
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getDB() *sql.DB {
	return dbConn
}

func getConfig() config.Config {
	return appConfig
}

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Prefix for environment overrides, e.g. FLATPACK_WORKERS=8.
	EnvPrefix = "FLATPACK_"

	DefaultDestinationDir = "./extracted"
	DefaultDbPath         = "./flatpack_state.duckdb"
	DefaultDownloadDir    = "./downloads"
	DefaultManifestName   = "manifest.parquet"
)

var (
	// Default number of workers, often set to CPU count.
	DefaultNumWorkers = runtime.NumCPU()
)

// Config holds application settings
type Config struct {
	DestinationDir string        `yaml:"destination_dir"`
	DbPath         string        `yaml:"db_path"`
	NumWorkers     int           `yaml:"workers"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
	MaxDepth       int           `yaml:"max_depth"` // 0 means unbounded
	Organize       bool          `yaml:"organize"`
	ManifestPath   string        `yaml:"manifest_path"`
	ExportDir      string        `yaml:"export_dir"`
	DownloadDir    string        `yaml:"download_dir"` // where URL inputs are fetched to
	// Extra extension routes, e.g. {"pak": "zip"}.
	Routes map[string]string `yaml:"routes"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() Config {
	return Config{
		DestinationDir: DefaultDestinationDir,
		DbPath:         DefaultDbPath,
		DownloadDir:    DefaultDownloadDir,
		NumWorkers:     DefaultNumWorkers,
		Organize:       true,
	}
}

// LoadFile reads a YAML config file on top of Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv loads a .env file if present and applies FLATPACK_* overrides.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	if v, ok := lookup("DESTINATION_DIR"); ok {
		c.DestinationDir = v
	}
	if v, ok := lookup("DB_PATH"); ok {
		c.DbPath = v
	}
	if v, ok := lookup("DOWNLOAD_DIR"); ok {
		c.DownloadDir = v
	}
	if v, ok := lookup("MANIFEST_PATH"); ok {
		c.ManifestPath = v
	}
	if v, ok := lookup("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS=%q is not an int: %w", EnvPrefix, v, err)
		}
		c.NumWorkers = n
	}
	if v, ok := lookup("MAX_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_DEPTH=%q is not an int: %w", EnvPrefix, v, err)
		}
		c.MaxDepth = n
	}
	if v, ok := lookup("JOB_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sJOB_TIMEOUT=%q is not a duration: %w", EnvPrefix, v, err)
		}
		c.JobTimeout = d
	}
	return nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DestinationDir == "" {
		return fmt.Errorf("destination_dir is required")
	}
	if c.DbPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("job_timeout must be >= 0")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Package common provides shared utilities for the evaluation server.
package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the evaluation server.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Queue       QueueConfig   `toml:"queue"`
	Storage     StoreConfig   `toml:"storage"`
	Dataset     DatasetConfig `toml:"dataset"`
	Build       BuildConfig   `toml:"build"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// QueueConfig holds worker-pool sizing.
type QueueConfig struct {
	MaxWorkers int `toml:"max_workers"`
}

// StoreConfig holds result-store placement and expiry.
type StoreConfig struct {
	ResultsDir string `toml:"results_dir"`
	TTL        string `toml:"ttl"` // duration string, default "168h" (1 week)
}

// GetTTL parses and returns the result expiry duration.
func (c *StoreConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// DatasetConfig holds reference-dataset and archive locations.
type DatasetConfig struct {
	DataPath            string `toml:"data_path"`
	DatasetPath         string `toml:"dataset_path"`
	ArchivesRoot        string `toml:"archives_root"`
	KeepStillInProgress bool   `toml:"keep_still_in_progress"`
}

// BuildConfig holds build-handler behavior.
type BuildConfig struct {
	MockBuildHandler bool   `toml:"mock_build_handler"`
	DockerHost       string `toml:"docker_host"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config populated with every default the
// server falls back to when no file or environment override is present.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 45003,
		},
		Queue: QueueConfig{
			MaxWorkers: 5,
		},
		Storage: StoreConfig{
			ResultsDir: "submission_results",
			TTL:        "168h",
		},
		Dataset: DatasetConfig{
			DataPath:     "data",
			DatasetPath:  "data/dataset.json",
			ArchivesRoot: "data/archives",
		},
		Build: BuildConfig{
			MockBuildHandler: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from TOML files with environment overrides.
// Later paths override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config,
// using the exact variable names named in the original environment defaults
// (PORT, MAX_WORKERS, RESULTS_DIR, MOCK_BUILD_HANDLER, DATA_PATH,
// DATASET_PATH, ARCHIVES_ROOT) plus a CRAB_ prefixed set for the ambient
// stack additions that have no equivalent upstream.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Queue.MaxWorkers = n
		}
	}
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		config.Storage.ResultsDir = v
	}
	if v := os.Getenv("MOCK_BUILD_HANDLER"); v != "" {
		config.Build.MockBuildHandler = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		config.Dataset.DataPath = v
	}
	if v := os.Getenv("DATASET_PATH"); v != "" {
		config.Dataset.DatasetPath = v
	}
	if v := os.Getenv("ARCHIVES_ROOT"); v != "" {
		config.Dataset.ArchivesRoot = v
	}
	if v := os.Getenv("DATASET_KEEP_WIP"); v != "" {
		config.Dataset.KeepStillInProgress = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CRAB_ENV"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("CRAB_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("CRAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CRAB_DOCKER_HOST"); v != "" {
		config.Build.DockerHost = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

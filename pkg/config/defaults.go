package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nntpvault/nntpvault/internal/bytesize"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLogDefaults(&cfg.Log)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	cfg.Database.ApplyDefaults()
	applyIndexDefaults(&cfg.Index)
	applySpoolDefaults(&cfg.Spool)

	for i := range cfg.Providers {
		applyProviderDefaults(&cfg.Providers[i])
	}

	applyUploadDefaults(&cfg.Upload)
	applyDownloadDefaults(&cfg.Download)
	applyScryptDefaults(&cfg.Scrypt)
	cfg.API.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLogDefaults(cfg *LogConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}
	if cfg.Backend == "badger" {
		cfg.Badger.ApplyDefaults()
	}
	if cfg.Backend == "postgres" {
		cfg.Postgres.ApplyDefaults()
	}
}

func applySpoolDefaults(cfg *SpoolConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "fs"
	}
	if cfg.Backend == "fs" && cfg.Path == "" {
		cfg.Path = filepath.Join(defaultStateDir(), "spool")
	}
}

func applyProviderDefaults(cfg *ProviderConfig) {
	if cfg.Port == 0 {
		if cfg.TLS {
			cfg.Port = 563
		} else {
			cfg.Port = 119
		}
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = pool.DefaultMaxOpen
	}
	if cfg.MinIdle == 0 {
		cfg.MinIdle = pool.DefaultMinIdle
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = pool.DefaultIdleTimeout
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = pool.DefaultMaxLifetime
	}
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = pool.DefaultAcquireTimeout
	}
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = bytesize.ByteSize(index.SegmentSize)
	}
	if cfg.Newsgroup == "" {
		cfg.Newsgroup = "alt.binaries.misc"
	}
	if cfg.RetriesMax == 0 {
		cfg.RetriesMax = 5
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = 500 * time.Millisecond
	}
	if cfg.RetryBackoffCap == 0 {
		cfg.RetryBackoffCap = 30 * time.Second
	}
	// Workers and QueueSize default in the upload engine; zero means
	// "engine default" here.
}

func applyDownloadDefaults(cfg *DownloadConfig) {
	if cfg.ArticleTimeout == 0 {
		cfg.ArticleTimeout = 30 * time.Second
	}
}

func applyScryptDefaults(cfg *ScryptConfig) {
	if cfg.N == 0 {
		cfg.N = 16384
	}
	if cfg.R == 0 {
		cfg.R = 8
	}
	if cfg.P == 0 {
		cfg.P = 1
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// defaultStateDir returns $XDG_STATE_HOME/nntpvault, falling back to
// ~/.local/state/nntpvault.
func defaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "nntpvault")
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "nntpvault")
}

// GetDefaultConfig returns a Config with all default values applied.
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

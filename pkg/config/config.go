package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nntpvault/nntpvault/internal/bytesize"
	"github.com/nntpvault/nntpvault/pkg/api"
	"github.com/nntpvault/nntpvault/pkg/index/badger"
	"github.com/nntpvault/nntpvault/pkg/index/postgres"
	"github.com/nntpvault/nntpvault/pkg/store"
)

// Config is the static configuration of an nntpvault daemon.
//
// It covers the control-plane database, the data-plane index, the article
// spool, the NNTP providers, the transfer engines, and the ambient stack
// (logging, API, metrics, telemetry). Dynamic state (users, folders,
// publications) lives in the stores and is managed through the API.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (NNTPVAULT_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Log controls log output behavior.
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Telemetry controls OpenTelemetry distributed tracing and
	// continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the control-plane store (SQLite or PostgreSQL):
	// users, folders, publications, sessions.
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Index configures the data-plane index: files, segments, pack groups.
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// Spool configures the staging area for sealed articles between
	// segmenting and posting.
	Spool SpoolConfig `mapstructure:"spool" yaml:"spool"`

	// Providers are the NNTP servers this daemon talks to. At least one
	// posting-enabled provider is required for uploads; downloads walk
	// the list in declared order.
	Providers []ProviderConfig `mapstructure:"providers" validate:"dive" yaml:"providers"`

	// Upload tunes segmenting and the posting engine.
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Download tunes the retrieval engine.
	Download DownloadConfig `mapstructure:"download" yaml:"download"`

	// Scrypt are the KDF cost parameters for protected shares and key
	// wrapping.
	Scrypt ScryptConfig `mapstructure:"scrypt" yaml:"scrypt"`

	// API configures the REST API server.
	API api.Config `mapstructure:"api" yaml:"api"`

	// Metrics configures the Prometheus metrics server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig controls logging behavior.
type LogConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a
	// file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When enabled,
// trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false (opt-in).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector. Default: true, for
	// local development.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls trace sampling (0.0 to 1.0). Default: 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is active.
	// Default: false (opt-in).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL. Default: "http://localhost:4040".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes selects which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// IndexConfig selects and configures the data-plane index backend.
type IndexConfig struct {
	// Backend is "badger" (embedded, default) or "postgres" (shared).
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=badger postgres" yaml:"backend"`

	Badger   badger.Config   `mapstructure:"badger" yaml:"badger"`
	Postgres postgres.Config `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// SpoolConfig selects and configures the article spool backend.
type SpoolConfig struct {
	// Backend is "fs" (default) or "s3".
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=fs s3" yaml:"backend"`

	// Path is the staging directory for the filesystem backend.
	// Default: $XDG_STATE_HOME/nntpvault/spool
	Path string `mapstructure:"path" yaml:"path"`

	S3 S3SpoolConfig `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3SpoolConfig configures the S3 spool backend. Endpoint may point at an
// S3-compatible service such as MinIO.
type S3SpoolConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// ProviderConfig describes one NNTP provider and its session pool.
type ProviderConfig struct {
	// Name identifies the provider in logs and metrics. Required and
	// unique across the provider list.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	Host          string `mapstructure:"host" validate:"required" yaml:"host"`
	Port          int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify,omitempty"`
	Username      string `mapstructure:"username" yaml:"username,omitempty"`
	Password      string `mapstructure:"password" yaml:"password,omitempty"`

	// MaxConnections caps concurrent sessions to this provider.
	// Default: 60.
	MaxConnections int `mapstructure:"max_connections" validate:"omitempty,min=1" yaml:"max_connections"`

	// MinIdle is the idle floor kept warm in the background. Default: 1.
	MinIdle int `mapstructure:"min_idle" yaml:"min_idle"`

	// IdleTimeout closes sessions idle longer than this. Default: 5m.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// MaxLifetime closes sessions older than this. Default: 1h.
	MaxLifetime time.Duration `mapstructure:"max_lifetime" yaml:"max_lifetime"`

	// AcquireTimeout bounds the wait for a free session. Default: 5s.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`

	// Posting marks this provider usable for uploads. The first
	// posting-enabled provider in the list is the posting provider.
	Posting bool `mapstructure:"posting" yaml:"posting"`
}

// UploadConfig tunes segmenting and the posting engine.
type UploadConfig struct {
	// SegmentSize is the plaintext slice size. Producer and consumer
	// must agree; the default 768000 is the only supported value unless
	// AllowCustomSegmentSize is set.
	SegmentSize bytesize.ByteSize `mapstructure:"segment_size" yaml:"segment_size"`

	// AllowCustomSegmentSize permits a non-standard segment size. Both
	// sides of every share must then run the same value.
	AllowCustomSegmentSize bool `mapstructure:"allow_custom_segment_size" yaml:"allow_custom_segment_size,omitempty"`

	// RedundancyLevel is the default copies sealed per segment (0..5).
	// 0 means a single copy, no duplication.
	RedundancyLevel uint8 `mapstructure:"redundancy_level" validate:"lte=5" yaml:"redundancy_level"`

	// Newsgroup is the default group new folders post to.
	Newsgroup string `mapstructure:"newsgroup" yaml:"newsgroup"`

	// From overrides the article From header.
	From string `mapstructure:"from" yaml:"from,omitempty"`

	// Workers is the posting worker count per run. Default: matches the
	// posting provider's connection cap.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// QueueSize bounds the in-flight task channel; a full channel blocks
	// the feeder.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// RetriesMax bounds posting attempts per copy per run. Default: 5.
	RetriesMax uint8 `mapstructure:"retries_max" yaml:"retries_max"`

	// RetryBackoffBase is the pause after the first transient failure.
	// Default: 500ms.
	RetryBackoffBase time.Duration `mapstructure:"retry_backoff_base" yaml:"retry_backoff_base"`

	// RetryBackoffCap caps the pause between attempts. Default: 30s.
	RetryBackoffCap time.Duration `mapstructure:"retry_backoff_cap" yaml:"retry_backoff_cap"`

	// VerifyOnResume asks the provider (STAT) whether a copy stranded
	// mid-upload actually arrived before reposting it.
	VerifyOnResume bool `mapstructure:"verify_on_resume" yaml:"verify_on_resume"`
}

// DownloadConfig tunes the retrieval engine.
type DownloadConfig struct {
	// Workers is the retrieval worker count per run.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// ArticleTimeout bounds a single article fetch. Default: 30s.
	ArticleTimeout time.Duration `mapstructure:"article_timeout" yaml:"article_timeout"`
}

// ScryptConfig carries the scrypt cost parameters.
type ScryptConfig struct {
	N int `mapstructure:"n" validate:"omitempty,min=1024" yaml:"n"`
	R int `mapstructure:"r" validate:"omitempty,min=1" yaml:"r"`
	P int `mapstructure:"p" validate:"omitempty,min=1" yaml:"p"`
}

// MetricsConfig configures the Prometheus metrics HTTP server. When
// Enabled is false no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint. Default: 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location under $XDG_CONFIG_HOME/nntpvault)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages, checking that
// the config file actually exists before parsing it.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  nntpvault init\n\n"+
				"Or specify a custom config file:\n"+
				"  nntpvault <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  nntpvault init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
// The file is written 0600: provider credentials and the JWT secret live
// in it.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file lookup.
func setupViper(v *viper.Viper, configPath string) {
	// NNTPVAULT_LOG_LEVEL=DEBUG overrides log.level, and so on.
	v.SetEnvPrefix("NNTPVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// whether a file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// so segment_size accepts "750KB", "768000" or a bare number.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration ("30s", "5m", "1h").
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path: XDG_CONFIG_HOME
// if set, otherwise ~/.config, falling back to the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nntpvault")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nntpvault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}

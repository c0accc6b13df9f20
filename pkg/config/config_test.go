package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/internal/bytesize"
	"github.com/nntpvault/nntpvault/pkg/index"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "badger", cfg.Index.Backend)
	assert.Equal(t, "fs", cfg.Spool.Backend)
	assert.NotEmpty(t, cfg.Spool.Path)
	assert.Equal(t, bytesize.ByteSize(index.SegmentSize), cfg.Upload.SegmentSize)
	assert.Equal(t, uint8(5), cfg.Upload.RetriesMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Upload.RetryBackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Upload.RetryBackoffCap)
	assert.Equal(t, 30*time.Second, cfg.Download.ArticleTimeout)
	assert.Equal(t, 16384, cfg.Scrypt.N)
	assert.Equal(t, 8, cfg.Scrypt.R)
	assert.Equal(t, 1, cfg.Scrypt.P)

	require.NoError(t, Validate(cfg))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
  format: json
upload:
  segment_size: 768000
  redundancy_level: 2
  retry_backoff_base: 250ms
providers:
  - name: primary
    host: news.example.com
    tls: true
    username: u
    password: p
    posting: true
  - name: backup
    host: backup.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint8(2), cfg.Upload.RedundancyLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Upload.RetryBackoffBase)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "primary", cfg.Providers[0].Name)
	assert.Equal(t, 563, cfg.Providers[0].Port, "TLS default port")
	assert.Equal(t, 119, cfg.Providers[1].Port)
	assert.True(t, cfg.Providers[0].Posting)
	assert.Equal(t, 60, cfg.Providers[0].MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.Providers[0].IdleTimeout)
	assert.Equal(t, time.Hour, cfg.Providers[0].MaxLifetime)
}

func TestLoad_SegmentSizeString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
upload:
  segment_size: "750KB"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, bytesize.ByteSize(750_000), cfg.Upload.SegmentSize)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "LOUD" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"redundancy over cap", func(c *Config) { c.Upload.RedundancyLevel = 6 }},
		{"custom segment size without override", func(c *Config) { c.Upload.SegmentSize = 1024 }},
		{"duplicate provider name", func(c *Config) {
			c.Providers = []ProviderConfig{
				{Name: "a", Host: "h1", Port: 119, MaxConnections: 1, MinIdle: 1, IdleTimeout: time.Minute, MaxLifetime: time.Hour, AcquireTimeout: time.Second},
				{Name: "a", Host: "h2", Port: 119, MaxConnections: 1, MinIdle: 1, IdleTimeout: time.Minute, MaxLifetime: time.Hour, AcquireTimeout: time.Second},
			}
		}},
		{"unknown spool backend", func(c *Config) { c.Spool.Backend = "ftp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidate_CustomSegmentSizeAllowed(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Upload.SegmentSize = 1024
	cfg.Upload.AllowCustomSegmentSize = true
	assert.NoError(t, Validate(cfg))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Log.Level = "DEBUG"
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", loaded.Log.Level)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0600))

	t.Setenv("NNTPVAULT_LOG_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Log.Level)
}

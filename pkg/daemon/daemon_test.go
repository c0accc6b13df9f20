package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/api"
	"github.com/nntpvault/nntpvault/pkg/config"
	"github.com/nntpvault/nntpvault/pkg/index/badger"
	"github.com/nntpvault/nntpvault/pkg/nntp/nntptest"
	"github.com/nntpvault/nntpvault/pkg/store"
)

// testConfig wires everything against throwaway backends: SQLite in a
// temp dir, in-memory badger, filesystem spool, and a fake NNTP server.
func testConfig(t *testing.T, srv *nntptest.Server) *config.Config {
	t.Helper()

	dir := t.TempDir()
	apiEnabled := false

	cfg := config.GetDefaultConfig()
	cfg.Database = store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(dir, "vault.db")},
	}
	cfg.Index.Backend = "badger"
	cfg.Index.Badger = badger.Config{InMemory: true}
	cfg.Spool.Backend = "fs"
	cfg.Spool.Path = filepath.Join(dir, "spool")
	cfg.Providers = []config.ProviderConfig{{
		Name:           "fake",
		Host:           srv.Host(),
		Port:           srv.Port(),
		MaxConnections: 2,
		Posting:        true,
	}}
	cfg.API = api.Config{
		Enabled:       &apiEnabled,
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		AdminUser:     "admin",
		AdminPassword: "bootstrap-secret",
	}
	cfg.Metrics.Enabled = false
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func TestNewBuildsAndCloses(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	d, err := New(context.Background(), testConfig(t, srv))
	require.NoError(t, err)

	assert.NotNil(t, d.Coordinator())
	assert.Equal(t, 1, d.Registry().CountProviders())
	assert.Equal(t, 0, d.APIPort(), "API disabled, no port")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "Close is idempotent")
}

func TestBootstrapAdmin(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	cfg := testConfig(t, srv)
	d, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	// Password came from configuration, so nothing to surface.
	assert.Empty(t, d.AdminPassword())

	user, err := d.Registry().GetStore().GetUser(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, user.IsAdmin())
}

func TestBootstrapAdminGeneratesPassword(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.API.AdminPassword = ""
	d, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	assert.Len(t, d.AdminPassword(), 32, "16 random bytes, hex encoded")
}

func TestBootstrapAdminIdempotent(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(t, srv)
	cfg.Database.SQLite.Path = filepath.Join(dir, "shared.db")
	// Badger in-memory is per-process state, reuse is fine across daemons.

	d1, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, d1.Close())

	d2, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer d2.Close()

	assert.Empty(t, d2.AdminPassword(), "second start must not recreate the admin")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	d, err := New(context.Background(), testConfig(t, srv))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestUnknownBackends(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.Index.Backend = "etcd"
	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown index backend")

	cfg = testConfig(t, srv)
	cfg.Spool.Backend = "tape"
	_, err = New(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown spool backend")
}

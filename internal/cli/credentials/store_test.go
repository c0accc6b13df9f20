package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := newStoreAt(path)
	require.NoError(t, err)
	return s
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
	assert.Empty(t, s.ContextNames())
}

func TestSetAndReloadContext(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{
		ServerURL:    "http://localhost:8419",
		Username:     "alice",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, s.SetContext("default", sess))

	// Reopen from disk.
	reloaded, err := newStoreAt(s.Path())
	require.NoError(t, err)

	got, err := reloaded.Current()
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "default", reloaded.CurrentName())
}

func TestFilePermissions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetContext("default", &Session{ServerURL: "http://x"}))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUseAndDeleteContext(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetContext("a", &Session{ServerURL: "http://a"}))
	require.NoError(t, s.SetContext("b", &Session{ServerURL: "http://b"}))
	assert.Equal(t, "b", s.CurrentName())

	require.NoError(t, s.UseContext("a"))
	assert.Equal(t, "a", s.CurrentName())

	assert.ErrorIs(t, s.UseContext("missing"), ErrContextNotFound)

	require.NoError(t, s.DeleteContext("a"))
	assert.Empty(t, s.CurrentName())
	assert.ErrorIs(t, s.DeleteContext("a"), ErrContextNotFound)
}

func TestUpdateAndClearTokens(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetContext("default", &Session{ServerURL: "http://x"}))

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, s.UpdateTokens("new-access", "new-refresh", expiry))

	sess, err := s.Current()
	require.NoError(t, err)
	assert.True(t, sess.LoggedIn())
	assert.False(t, sess.TokenExpired())

	require.NoError(t, s.ClearTokens())
	sess, err = s.Current()
	require.NoError(t, err)
	assert.False(t, sess.LoggedIn())
	assert.Equal(t, "http://x", sess.ServerURL)
}

func TestTokenExpired(t *testing.T) {
	sess := &Session{}
	assert.True(t, sess.TokenExpired(), "zero expiry counts as expired")

	sess.ExpiresAt = time.Now().Add(30 * time.Second)
	assert.True(t, sess.TokenExpired(), "inside the refresh window")

	sess.ExpiresAt = time.Now().Add(10 * time.Minute)
	assert.False(t, sess.TokenExpired())
}

func TestContextNameFor(t *testing.T) {
	assert.Equal(t, "vault.example.com:8419", ContextNameFor("http://vault.example.com:8419"))
	assert.Equal(t, "localhost:8419", ContextNameFor("https://LOCALHOST:8419"))
	assert.Equal(t, "default", ContextNameFor("not a url"))
}

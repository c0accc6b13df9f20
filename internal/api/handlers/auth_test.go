package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/api/middleware"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

type authFixture struct {
	store   *store.GORMStore
	ids     *identity.Service
	jwt     *auth.JWTService
	keyring *auth.Keyring
	handler *AuthHandler
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ids := identity.NewService(st)
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: strings.Repeat("k", 32)})
	require.NoError(t, err)
	keyring := auth.NewKeyring()

	return &authFixture{
		store:   st,
		ids:     ids,
		jwt:     jwtService,
		keyring: keyring,
		handler: NewAuthHandler(st, ids, jwtService, keyring),
	}
}

func (f *authFixture) createUser(t *testing.T, username, password string) *identity.UserKeys {
	t.Helper()
	keys, err := f.ids.CreateUser(context.Background(), username, password, models.RoleUser)
	require.NoError(t, err)
	return keys
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_Login(t *testing.T) {
	f := newAuthFixture(t)
	keys := f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	// Login unlocks the identity into the keyring.
	unlocked, ok := f.keyring.Get(keys.User.ID)
	require.True(t, ok)
	assert.Equal(t, keys.User.ID, unlocked.User.ID)

	// A session row exists for the refresh token.
	session, err := f.store.GetSessionByTokenHash(context.Background(), hashToken(resp.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, keys.User.ID, session.UserID)
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	f := newAuthFixture(t)

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "nobody",
		Password: "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Login_DisabledUser(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", "super secret passphrase")
	require.NoError(t, f.store.SetUserEnabled(context.Background(), "alice", false))

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthHandler_Refresh_RotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = postJSON(t, f.handler.Refresh, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshed LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is burned.
	rec = postJSON(t, f.handler.Refresh, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Refresh_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = postJSON(t, f.handler.Refresh, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: login.AccessToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	me := middleware.JWTAuth(f.jwt)(http.HandlerFunc(f.handler.Me))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	me.ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code)

	var user UserResponse
	require.NoError(t, json.Unmarshal(out.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newAuthFixture(t)
	keys := f.createUser(t, "alice", "super secret passphrase")

	rec := postJSON(t, f.handler.Login, "/api/v1/auth/login", LoginRequest{
		Username: "alice",
		Password: "super secret passphrase",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	logout := middleware.JWTAuth(f.jwt)(http.HandlerFunc(f.handler.Logout))
	payload, err := json.Marshal(LogoutRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	logout.ServeHTTP(out, req)

	assert.Equal(t, http.StatusNoContent, out.Code)

	// Keys are dropped and the refresh token no longer works.
	_, ok := f.keyring.Get(keys.User.ID)
	assert.False(t, ok)

	rec = postJSON(t, f.handler.Refresh, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

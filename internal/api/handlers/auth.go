package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/api/middleware"
	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// AuthHandler handles authentication-related API endpoints.
//
// Login does double duty: it verifies the bcrypt hash and re-derives the
// storage key from the same secret, leaving the unlocked identity in the
// keyring for the workflow handlers. A token alone is therefore not
// enough to touch key material after a daemon restart.
type AuthHandler struct {
	store      store.Store
	ids        *identity.Service
	jwtService *auth.JWTService
	keyring    *auth.Keyring
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s store.Store, ids *identity.Service, jwtService *auth.JWTService, keyring *auth.Keyring) *AuthHandler {
	return &AuthHandler{
		store:      s,
		ids:        ids,
		jwtService: jwtService,
		keyring:    keyring,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a sanitized user representation for API responses.
// Wrapped private keys and the password hash never leave the store.
type UserResponse struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Role             string     `json:"role"`
	SigningPublicKey string     `json:"signing_public_key"`
	BoxPublicKey     string     `json:"box_public_key"`
	Enabled          bool       `json:"enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the request body for POST /api/v1/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login.
// Authenticates user credentials, unlocks the user's keys into the
// keyring and returns a JWT token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	user, err := h.store.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "Invalid username or password")
			return
		}
		if errors.Is(err, models.ErrUserDisabled) {
			Forbidden(w, "User account is disabled")
			return
		}
		InternalServerError(w, "Authentication failed")
		return
	}

	// The login secret doubles as the key-wrapping secret. A mismatch
	// here despite valid credentials means the row was tampered with.
	keys, err := identity.UnlockUserKeys(user, req.Password)
	if err != nil {
		logger.ErrorCtx(r.Context(), "credentials valid but key unwrap failed",
			"username", user.Username, "error", err)
		InternalServerError(w, "Failed to unlock identity keys")
		return
	}
	h.keyring.Put(keys)

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: hashToken(tokenPair.RefreshToken),
		ExpiresAt: tokenPair.RefreshExpiresAt,
	}
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		InternalServerError(w, "Failed to record session")
		return
	}

	// Update last login time (non-critical, log error for debugging)
	if err := h.store.UpdateLastLogin(r.Context(), user.Username, time.Now()); err != nil {
		logger.WarnCtx(r.Context(), "failed to update last login time", "username", user.Username, "error", err)
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User:         userToResponse(user),
	})
}

// Refresh handles POST /api/v1/auth/refresh.
// Returns a new token pair using a valid refresh token. The old session
// is revoked and replaced; a refresh token works exactly once.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	now := time.Now()
	session, err := h.store.GetSessionByTokenHash(r.Context(), hashToken(req.RefreshToken))
	if err != nil {
		Unauthorized(w, "Session not found")
		return
	}
	if !session.Active(now) {
		Unauthorized(w, "Session has been revoked")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}
	if !user.Enabled {
		Forbidden(w, "User account is disabled")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	if err := h.store.RevokeSession(r.Context(), session.ID, now); err != nil {
		logger.WarnCtx(r.Context(), "failed to revoke rotated session", "session_id", session.ID, "error", err)
	}
	next := &models.Session{
		UserID:    user.ID,
		TokenHash: hashToken(tokenPair.RefreshToken),
		ExpiresAt: tokenPair.RefreshExpiresAt,
	}
	if err := h.store.CreateSession(r.Context(), next); err != nil {
		InternalServerError(w, "Failed to record session")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User:         userToResponse(user),
	})
}

// Logout handles POST /api/v1/auth/logout.
// Revokes the session behind the refresh token and drops the caller's
// unlocked keys from the keyring.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	var req LogoutRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	now := time.Now()
	if req.RefreshToken != "" {
		if session, err := h.store.GetSessionByTokenHash(r.Context(), hashToken(req.RefreshToken)); err == nil {
			if err := h.store.RevokeSession(r.Context(), session.ID, now); err != nil {
				logger.WarnCtx(r.Context(), "failed to revoke session", "session_id", session.ID, "error", err)
			}
		}
	} else {
		// No specific session named: revoke them all.
		if err := h.store.RevokeUserSessions(r.Context(), claims.UserID, now); err != nil {
			logger.WarnCtx(r.Context(), "failed to revoke user sessions", "user_id", claims.UserID, "error", err)
		}
	}

	h.keyring.Drop(claims.UserID)
	WriteNoContent(w)
}

// Me handles GET /api/v1/users/me.
// Returns the current authenticated user's information.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}

	WriteJSONOK(w, userToResponse(user))
}

// hashToken returns the hex SHA-256 of a bearer token. Only the hash is
// ever persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// userToResponse converts a User to a UserResponse for API output.
func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:               user.ID,
		Username:         user.Username,
		Role:             user.Role,
		SigningPublicKey: user.SigningPublicKey,
		BoxPublicKey:     user.BoxPublicKey,
		Enabled:          user.Enabled,
		CreatedAt:        user.CreatedAt,
		LastLogin:        user.LastLogin,
	}
}

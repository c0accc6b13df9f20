package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// UserHandler handles admin user-management endpoints.
type UserHandler struct {
	store store.Store
	ids   *identity.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s store.Store, ids *identity.Service) *UserHandler {
	return &UserHandler{store: s, ids: ids}
}

// CreateUserRequest is the request body for POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Create handles POST /api/v1/users (admin only).
// Mints a full identity: credentials, keypairs and wrapped privates.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	role := models.UserRole(req.Role)
	if req.Role == "" {
		role = models.RoleUser
	}
	if !role.IsValid() {
		BadRequest(w, "Role must be 'user' or 'admin'")
		return
	}

	keys, err := h.ids.CreateUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			Conflict(w, "Username is already taken")
			return
		}
		InternalServerError(w, "Failed to create user")
		return
	}

	WriteJSONCreated(w, userToResponse(keys.User))
}

// List handles GET /api/v1/users (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /api/v1/users/{username} (admin only).
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.store.GetUser(r.Context(), username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}

	WriteJSONOK(w, userToResponse(user))
}

// SetEnabledRequest is the request body for PUT /api/v1/users/{username}/enabled.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled handles PUT /api/v1/users/{username}/enabled (admin only).
// Disabling a user also revokes their live sessions.
func (h *UserHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req SetEnabledRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.store.SetUserEnabled(r.Context(), username, req.Enabled); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to update user")
		return
	}

	if !req.Enabled {
		user, err := h.store.GetUser(r.Context(), username)
		if err == nil {
			if err := h.store.RevokeUserSessions(r.Context(), user.ID, time.Now()); err != nil {
				logger.WarnCtx(r.Context(), "failed to revoke sessions of disabled user",
					"username", username, "error", err)
			}
		}
	}

	WriteNoContent(w)
}

// Delete handles DELETE /api/v1/users/{username} (admin only).
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.store.DeleteUser(r.Context(), username); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to delete user")
		return
	}

	WriteNoContent(w)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/api/middleware"
	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/publish"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// ownerKeys resolves the unlocked identity behind the request's claims.
// A valid token whose keys are gone from the keyring means the daemon
// restarted since login; the client must log in again.
func ownerKeys(w http.ResponseWriter, r *http.Request, keyring *auth.Keyring) (*identity.UserKeys, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return nil, false
	}
	keys, ok := keyring.Get(claims.UserID)
	if !ok {
		Unauthorized(w, "Session keys are no longer available; log in again")
		return nil, false
	}
	return keys, true
}

// writeDomainError maps known domain errors to problem responses, falling
// back to a generic 500 with the given detail.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrFolderNotFound),
		errors.Is(err, models.ErrUnknownShareID),
		errors.Is(err, coordinator.ErrUnknownOperation):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrFolderNotOwned):
		Forbidden(w, err.Error())
	case errors.Is(err, models.ErrPublicationExpired):
		Gone(w, err.Error())
	case errors.Is(err, models.ErrDuplicateUser),
		errors.Is(err, models.ErrDuplicateFolder),
		errors.Is(err, models.ErrDuplicatePublication),
		errors.Is(err, coordinator.ErrFolderBusy),
		errors.Is(err, coordinator.ErrOperationFinished):
		Conflict(w, err.Error())
	case errors.Is(err, coordinator.ErrNeverIndexed),
		errors.Is(err, publish.ErrVersionIncomplete),
		errors.Is(err, publish.ErrNotPrivate):
		UnprocessableEntity(w, err.Error())
	case errors.Is(err, access.ErrPasswordRequired),
		errors.Is(err, access.ErrUserRequired):
		BadRequest(w, err.Error())
	case errors.Is(err, access.ErrPermissionDenied),
		errors.Is(err, access.ErrAuthFailure):
		Forbidden(w, err.Error())
	default:
		InternalServerError(w, fallback)
	}
}

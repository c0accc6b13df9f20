package handlers

import (
	"net/http"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/api/middleware"
	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
)

// DownloadHandler launches share reconstruction runs.
type DownloadHandler struct {
	coord   *coordinator.Coordinator
	keyring *auth.Keyring
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(coord *coordinator.Coordinator, keyring *auth.Keyring) *DownloadHandler {
	return &DownloadHandler{coord: coord, keyring: keyring}
}

// DownloadRequest is the request body for POST /api/v1/downloads.
type DownloadRequest struct {
	ShareID    string `json:"share_id"`
	TargetRoot string `json:"target_root"`

	// Password unlocks protected shares. Private shares use the caller's
	// unlocked identity instead; public shares need neither.
	Password string `json:"password,omitempty"`
}

// Create handles POST /api/v1/downloads.
// Launches a background download run and returns its operation ID.
// Credential failures surface here, before any article is fetched.
func (h *DownloadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ShareID == "" {
		BadRequest(w, "share_id is required")
		return
	}
	if req.TargetRoot == "" {
		BadRequest(w, "target_root is required")
		return
	}

	// The caller's unlocked identity rides along when present so private
	// shares work; public and protected shares ignore it.
	creds := access.Credentials{Password: req.Password}
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		if keys, ok := h.keyring.Get(claims.UserID); ok {
			creds.User = keys
		}
	}

	opID, err := h.coord.StartDownload(r.Context(), coordinator.DownloadRequest{
		ShareID:     req.ShareID,
		TargetRoot:  req.TargetRoot,
		Credentials: creds,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to start download")
		return
	}
	WriteJSONAccepted(w, OperationStartedResponse{OperationID: opID})
}

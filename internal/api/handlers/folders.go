package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
	"github.com/nntpvault/nntpvault/pkg/publish"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// FolderHandler handles folder lifecycle and workflow endpoints.
//
// Every route needs the caller's unlocked identity from the keyring:
// folder keys are wrapped with the owner's storage key, so a bare JWT
// cannot touch them.
type FolderHandler struct {
	coord   *coordinator.Coordinator
	keyring *auth.Keyring
}

// NewFolderHandler creates a new FolderHandler.
func NewFolderHandler(coord *coordinator.Coordinator, keyring *auth.Keyring) *FolderHandler {
	return &FolderHandler{coord: coord, keyring: keyring}
}

// CreateFolderRequest is the request body for POST /api/v1/folders.
type CreateFolderRequest struct {
	Name      string `json:"name"`
	RootPath  string `json:"root_path"`
	Newsgroup string `json:"newsgroup,omitempty"`
}

// OperationStartedResponse acknowledges a background workflow launch.
type OperationStartedResponse struct {
	OperationID string `json:"operation_id"`
}

// Create handles POST /api/v1/folders.
func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.RootPath == "" {
		BadRequest(w, "Root path is required")
		return
	}
	if req.Name == "" {
		BadRequest(w, "Name is required")
		return
	}

	folder, err := h.coord.AddFolder(r.Context(), owner, req.Name, req.RootPath, req.Newsgroup)
	if err != nil {
		writeDomainError(w, err, "Failed to create folder")
		return
	}

	WriteJSONCreated(w, folder)
}

// List handles GET /api/v1/folders.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	folders, err := h.coord.ListFolders(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err, "Failed to list folders")
		return
	}
	if folders == nil {
		folders = []*models.Folder{}
	}
	WriteJSONOK(w, folders)
}

// Get handles GET /api/v1/folders/{id}.
func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	folder, err := h.coord.Folder(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "Failed to fetch folder")
		return
	}
	WriteJSONOK(w, folder)
}

// Delete handles DELETE /api/v1/folders/{id}.
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	if err := h.coord.RemoveFolder(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, "Failed to delete folder")
		return
	}
	WriteNoContent(w)
}

// IndexFolderRequest is the request body for POST /api/v1/folders/{id}/index.
type IndexFolderRequest struct {
	// Redundancy overrides the configured copies per slice for this run.
	// Zero keeps the daemon default.
	Redundancy uint8 `json:"redundancy,omitempty"`
}

// Index handles POST /api/v1/folders/{id}/index.
// Launches a background index run and returns its operation ID.
func (h *FolderHandler) Index(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	var req IndexFolderRequest
	if r.ContentLength > 0 && !decodeJSONBody(w, r, &req) {
		return
	}

	opID, err := h.coord.StartIndex(r.Context(), owner, chi.URLParam(r, "id"), coordinator.IndexOptions{
		Redundancy: req.Redundancy,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to start index run")
		return
	}
	WriteJSONAccepted(w, OperationStartedResponse{OperationID: opID})
}

// Upload handles POST /api/v1/folders/{id}/upload.
// Launches a background upload run for the folder's current version.
func (h *FolderHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	opID, err := h.coord.StartUpload(r.Context(), owner, chi.URLParam(r, "id"), coordinator.UploadOptions{})
	if err != nil {
		writeDomainError(w, err, "Failed to start upload run")
		return
	}
	WriteJSONAccepted(w, OperationStartedResponse{OperationID: opID})
}

// PublishFolderRequest is the request body for POST /api/v1/folders/{id}/publish.
type PublishFolderRequest struct {
	// AccessLevel is "public", "private" or "protected".
	AccessLevel string `json:"access_level"`

	// Password protects the share when AccessLevel is "protected".
	Password string `json:"password,omitempty"`

	// AuthorizedUserIDs grants access when AccessLevel is "private".
	// The folder owner is always included.
	AuthorizedUserIDs []string `json:"authorized_user_ids,omitempty"`

	// ExpiresAt bounds the share's lifetime. Omitted never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PublishFolderResponse is the response body for a successful publish.
type PublishFolderResponse struct {
	ShareID string `json:"share_id"`
}

// Publish handles POST /api/v1/folders/{id}/publish.
func (h *FolderHandler) Publish(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	var req PublishFolderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	level := models.AccessLevel(req.AccessLevel)
	if !level.IsValid() {
		BadRequest(w, "Access level must be 'public', 'private' or 'protected'")
		return
	}

	shareID, err := h.coord.PublishFolder(r.Context(), owner, chi.URLParam(r, "id"), publish.Options{
		Level:             level,
		Password:          req.Password,
		AuthorizedUserIDs: req.AuthorizedUserIDs,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to publish folder")
		return
	}
	WriteJSONCreated(w, PublishFolderResponse{ShareID: shareID})
}

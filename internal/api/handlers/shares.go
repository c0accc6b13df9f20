package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// maxShareRecordSize bounds imported publication records. A record is a
// sealed index plus key grants; anything past this is not one.
const maxShareRecordSize = 64 << 20

// ShareHandler handles publication endpoints.
type ShareHandler struct {
	coord   *coordinator.Coordinator
	keyring *auth.Keyring
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(coord *coordinator.Coordinator, keyring *auth.Keyring) *ShareHandler {
	return &ShareHandler{coord: coord, keyring: keyring}
}

// List handles GET /api/v1/shares?folder_id={id}.
// Lists the caller's publications for one folder.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	folderID := r.URL.Query().Get("folder_id")
	if folderID == "" {
		BadRequest(w, "folder_id query parameter is required")
		return
	}

	pubs, err := h.coord.ListShares(r.Context(), owner, folderID)
	if err != nil {
		writeDomainError(w, err, "Failed to list shares")
		return
	}
	if pubs == nil {
		pubs = []*models.Publication{}
	}
	WriteJSONOK(w, pubs)
}

// Get handles GET /api/v1/shares/{shareID}.
// Resolves a share ID to its publication record. The sealed index and
// key grants stay server-side; only metadata is returned.
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	pub, err := h.coord.ResolveShare(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		writeDomainError(w, err, "Failed to resolve share")
		return
	}
	WriteJSONOK(w, pub)
}

// Revoke handles DELETE /api/v1/shares/{shareID}.
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	if err := h.coord.RevokeShare(r.Context(), owner, chi.URLParam(r, "shareID")); err != nil {
		writeDomainError(w, err, "Failed to revoke share")
		return
	}
	WriteNoContent(w)
}

// AuthorizeRequest is the request body for POST /api/v1/shares/{shareID}/authorize.
type AuthorizeRequest struct {
	// UserID is the storage identity being granted access.
	UserID string `json:"user_id"`
}

// Authorize handles POST /api/v1/shares/{shareID}/authorize.
// Extends a private share to one more registered user.
func (h *ShareHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	var req AuthorizeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		BadRequest(w, "user_id is required")
		return
	}

	if err := h.coord.AuthorizeShare(r.Context(), owner, chi.URLParam(r, "shareID"), req.UserID); err != nil {
		writeDomainError(w, err, "Failed to authorize user")
		return
	}
	WriteNoContent(w)
}

// Export handles GET /api/v1/shares/{shareID}/export.
// Packs the publication record for out-of-band transport to a peer. The
// index inside stays sealed; possessing the record grants nothing
// without credentials.
func (h *ShareHandler) Export(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerKeys(w, r, h.keyring)
	if !ok {
		return
	}

	record, err := h.coord.ExportShare(r.Context(), owner, chi.URLParam(r, "shareID"))
	if err != nil {
		writeDomainError(w, err, "Failed to export share")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(record)
}

// Import handles POST /api/v1/shares/import.
// Installs a publication record exported by a peer, making its share ID
// resolvable on this daemon.
func (h *ShareHandler) Import(w http.ResponseWriter, r *http.Request) {
	record, err := io.ReadAll(io.LimitReader(r.Body, maxShareRecordSize+1))
	if err != nil {
		BadRequest(w, "Failed to read request body")
		return
	}
	if len(record) == 0 {
		BadRequest(w, "Publication record is required")
		return
	}
	if len(record) > maxShareRecordSize {
		BadRequest(w, "Publication record is too large")
		return
	}

	pub, err := h.coord.ImportShare(r.Context(), record)
	if err != nil {
		writeDomainError(w, err, "Failed to import share")
		return
	}
	WriteJSONCreated(w, pub)
}

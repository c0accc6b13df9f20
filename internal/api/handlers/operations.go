package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nntpvault/nntpvault/pkg/coordinator"
)

// OperationHandler exposes the coordinator's operation registry.
type OperationHandler struct {
	coord *coordinator.Coordinator
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(coord *coordinator.Coordinator) *OperationHandler {
	return &OperationHandler{coord: coord}
}

// List handles GET /api/v1/operations.
// Returns snapshots of every operation, running or settled, newest first.
func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	ops := h.coord.Operations()
	if ops == nil {
		ops = []coordinator.Operation{}
	}
	WriteJSONOK(w, ops)
}

// Get handles GET /api/v1/operations/{id}.
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	op, err := h.coord.Operation(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "Failed to fetch operation")
		return
	}
	WriteJSONOK(w, op)
}

// Cancel handles DELETE /api/v1/operations/{id}.
func (h *OperationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.CancelOperation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, "Failed to cancel operation")
		return
	}
	WriteNoContent(w)
}

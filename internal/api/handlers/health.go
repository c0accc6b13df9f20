package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nntpvault/nntpvault/pkg/registry"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the daemon process running?
//   - Readiness probe: Is the daemon ready to accept requests?
//   - Backend health: Detailed status of stores and provider pools
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new health handler.
//
// The registry parameter may be nil, in which case readiness and backend
// health checks will return unhealthy status.
func NewHealthHandler(registry *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// HealthResponse is the envelope for health endpoint responses.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) HealthResponse {
	return HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func unhealthyResponse(errMsg string) HealthResponse {
	return HealthResponse{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Error:     errMsg,
	}
}

func unhealthyResponseWithData(data any) HealthResponse {
	return HealthResponse{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the daemon process is running. This endpoint is designed
// for orchestrator liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "nntpvault",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK if the daemon is ready to accept requests. This checks:
//   - Registry is initialized with store, index and spool handles
//   - At least one NNTP provider is registered
//
// Returns 503 Service Unavailable if the daemon is not ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}
	if h.registry.GetStore() == nil || h.registry.GetIndex() == nil || h.registry.GetSpool() == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("backends not configured"))
		return
	}
	if h.registry.CountProviders() == 0 {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no providers configured"))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"providers":         h.registry.CountProviders(),
		"posting_providers": h.registry.ListPostingProviders(),
	}))
}

// BackendHealth represents the health status of a single backend.
type BackendHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// ProviderHealth reports one provider pool's connection counters.
type ProviderHealth struct {
	Name  string `json:"name"`
	Open  int    `json:"open"`
	Idle  int    `json:"idle"`
	InUse int    `json:"in_use"`
	Waits uint64 `json:"waits"`
}

// BackendsResponse represents the detailed backend health response.
type BackendsResponse struct {
	Backends  []BackendHealth  `json:"backends"`
	Providers []ProviderHealth `json:"providers"`
}

// Backends handles GET /health/backends - detailed backend health.
//
// Runs a healthcheck against the control-plane store, the segment index
// and the spool, and reports per-provider pool counters. Returns 200 OK
// if every backend is healthy, 503 Service Unavailable otherwise.
func (h *HealthHandler) Backends(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := BackendsResponse{
		Backends:  make([]BackendHealth, 0, 3),
		Providers: make([]ProviderHealth, 0, h.registry.CountProviders()),
	}
	allHealthy := true

	check := func(name, kind string, fn func(context.Context) error) {
		health := BackendHealth{Name: name, Type: kind}
		if fn == nil {
			health.Status = "unhealthy"
			health.Error = "not configured"
			allHealthy = false
			response.Backends = append(response.Backends, health)
			return
		}

		start := time.Now()
		err := fn(ctx)
		health.Latency = time.Since(start).String()

		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}
		response.Backends = append(response.Backends, health)
	}

	if st := h.registry.GetStore(); st != nil {
		check("control-plane", "store", st.Healthcheck)
	} else {
		check("control-plane", "store", nil)
	}
	if ix := h.registry.GetIndex(); ix != nil {
		check("segment-index", "index", ix.Healthcheck)
	} else {
		check("segment-index", "index", nil)
	}
	if sp := h.registry.GetSpool(); sp != nil {
		check("spool", "spool", sp.Healthcheck)
	} else {
		check("spool", "spool", nil)
	}

	for _, name := range h.registry.ListProviders() {
		p, err := h.registry.GetProvider(name)
		if err != nil {
			continue
		}
		stats := p.Stats()
		response.Providers = append(response.Providers, ProviderHealth{
			Name:  name,
			Open:  stats.Open,
			Idle:  stats.Idle,
			InUse: stats.InUse,
			Waits: stats.Waits,
		})
	}

	if allHealthy {
		WriteJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}

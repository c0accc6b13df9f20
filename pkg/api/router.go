// Package api provides the management REST API of a running daemon.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nntpvault/nntpvault/internal/api/auth"
	"github.com/nntpvault/nntpvault/internal/api/handlers"
	apiMiddleware "github.com/nntpvault/nntpvault/internal/api/middleware"
	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/coordinator"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/metrics"
	"github.com/nntpvault/nntpvault/pkg/registry"
	"github.com/nntpvault/nntpvault/pkg/store"
)

// RouterDeps are the services the router exposes over HTTP.
type RouterDeps struct {
	Registry    *registry.Registry
	Coordinator *coordinator.Coordinator
	Store       store.Store
	Identity    *identity.Service
	JWT         *auth.JWTService
	Keyring     *auth.Keyring

	// Metrics, when non-nil, is mounted unauthenticated at /metrics.
	Metrics http.Handler

	// APIMetrics, when non-nil, records per-route request counters.
	APIMetrics metrics.APIMetrics
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/backends - Detailed backend health
//   - GET /metrics - Prometheus scrape endpoint (when metrics are enabled)
//   - POST /api/v1/auth/login - User authentication (unlocks keys)
//   - POST /api/v1/auth/refresh - Token refresh
//   - POST /api/v1/auth/logout - Session revocation
//   - GET /api/v1/users/me - Current user info
//   - /api/v1/users/* - User management (admin only)
//   - /api/v1/folders/* - Folder lifecycle, index, upload, publish
//   - /api/v1/shares/* - Publication management
//   - POST /api/v1/downloads - Share reconstruction
//   - /api/v1/operations/* - Background operation tracking
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if deps.APIMetrics != nil {
		r.Use(requestMetrics(deps.APIMetrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health routes - unauthenticated
	healthHandler := handlers.NewHealthHandler(deps.Registry)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/backends", healthHandler.Backends)
	})

	// Prometheus scrape endpoint - unauthenticated, like health probes
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(deps.Store, deps.Identity, deps.JWT, deps.Keyring)
	userHandler := handlers.NewUserHandler(deps.Store, deps.Identity)
	folderHandler := handlers.NewFolderHandler(deps.Coordinator, deps.Keyring)
	shareHandler := handlers.NewShareHandler(deps.Coordinator, deps.Keyring)
	downloadHandler := handlers.NewDownloadHandler(deps.Coordinator, deps.Keyring)
	operationHandler := handlers.NewOperationHandler(deps.Coordinator)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Authenticated endpoint
			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(deps.JWT))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(deps.JWT))

			// User management
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", authHandler.Me)

				// Admin-only operations
				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.RequireAdmin())

					r.Post("/", userHandler.Create)
					r.Get("/", userHandler.List)
					r.Get("/{username}", userHandler.Get)
					r.Put("/{username}/enabled", userHandler.SetEnabled)
					r.Delete("/{username}", userHandler.Delete)
				})
			})

			// Folder lifecycle and workflows
			r.Route("/folders", func(r chi.Router) {
				r.Post("/", folderHandler.Create)
				r.Get("/", folderHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", folderHandler.Get)
					r.Delete("/", folderHandler.Delete)
					r.Post("/index", folderHandler.Index)
					r.Post("/upload", folderHandler.Upload)
					r.Post("/publish", folderHandler.Publish)
				})
			})

			// Publication management
			r.Route("/shares", func(r chi.Router) {
				r.Get("/", shareHandler.List)
				r.Post("/import", shareHandler.Import)

				r.Route("/{shareID}", func(r chi.Router) {
					r.Get("/", shareHandler.Get)
					r.Delete("/", shareHandler.Revoke)
					r.Post("/authorize", shareHandler.Authorize)
					r.Get("/export", shareHandler.Export)
				})
			})

			// Share reconstruction
			r.Post("/downloads", downloadHandler.Create)

			// Background operation tracking
			r.Route("/operations", func(r chi.Router) {
				r.Get("/", operationHandler.List)
				r.Get("/{id}", operationHandler.Get)
				r.Delete("/{id}", operationHandler.Cancel)
			})
		})
	})

	return r
}

// requestMetrics records per-route request counters and latency. The
// route pattern is resolved after the request so path parameters do not
// explode the label set.
func requestMetrics(m metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck and scrape requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

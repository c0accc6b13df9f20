// Package metrics defines the observability interfaces of the daemon and
// manages the process-wide Prometheus registry.
//
// Metrics are strictly opt-in: until InitRegistry is called, every
// constructor in the prometheus subpackage returns nil, and the nil
// implementations are no-ops. Callers never check whether metrics are
// enabled; they just call through.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry and seeds it
// with the standard Go runtime and process collectors. Idempotent; the
// first call wins.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the scrape endpoint for the process registry, or nil
// when metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// APIMetrics provides observability for management API requests.
//
// This interface is optional - pass nil to disable metrics collection
// with zero overhead.
type APIMetrics interface {
	// RecordRequest records a completed API request with its method,
	// route pattern, status code and duration.
	RecordRequest(method, route string, status int, duration time.Duration)
}

package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/metrics"
)

func TestNewAPIMetrics_NilWhenDisabled(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	m := NewAPIMetrics()
	assert.Nil(t, m)

	// Nil receiver is a no-op, not a panic.
	m.RecordRequest(http.MethodGet, "/api/v1/folders", http.StatusOK, time.Millisecond)
}

func TestAPIMetrics_RecordAndScrape(t *testing.T) {
	metrics.InitRegistry()

	m := NewAPIMetrics()
	require.NotNil(t, m)

	m.RecordRequest(http.MethodGet, "/api/v1/folders", http.StatusOK, 5*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/api/v1/folders", http.StatusOK, 7*time.Millisecond)
	m.RecordRequest(http.MethodPost, "/api/v1/downloads", http.StatusAccepted, 2*time.Millisecond)

	handler := metrics.Handler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "nntpvault_api_requests_total")
	assert.Contains(t, body, `route="/api/v1/folders"`)
	assert.Contains(t, body, "nntpvault_api_request_duration_seconds")
}

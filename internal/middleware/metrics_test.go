package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	r := chi.NewRouter()
	r.Use(Metrics(metrics))
	r.Get("/api/v1/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/payments/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var foundTotal, foundDuration bool
	for _, mf := range metricFamilies {
		switch *mf.Name {
		case "test_http_requests_total":
			foundTotal = true
			require.NotEmpty(t, mf.Metric)
			// The route pattern, not the raw path, is the label.
			var foundPattern bool
			for _, label := range mf.Metric[0].Label {
				if *label.Name == "path" && *label.Value == "/api/v1/payments/{id}" {
					foundPattern = true
				}
			}
			assert.True(t, foundPattern, "expected the chi route pattern as path label")
		case "test_http_request_duration_seconds":
			foundDuration = true
		}
	}
	assert.True(t, foundTotal, "http_requests_total not recorded")
	assert.True(t, foundDuration, "http_request_duration_seconds not recorded")
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"), "payment responses must not be cached")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "no HSTS without TLS")
}

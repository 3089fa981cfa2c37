package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Usable checks that label dimensions match how the http and client packages use them.
func TestMetrics_Usable(t *testing.T) {
	assert.NotPanics(t, func() {
		HTTPRequestsTotal.WithLabelValues("GET", "/api/weather", "2xx").Inc()
		HTTPRequestDuration.WithLabelValues("GET", "/api/weather").Observe(0.01)
		HTTPRequestsInFlight.Inc()
		HTTPRequestsInFlight.Dec()
		WeatherAPICallsTotal.WithLabelValues("success").Inc()
		WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
		WeatherAPIErrorsTotal.WithLabelValues("timeout").Inc()
		WeatherReportsTotal.WithLabelValues("ok").Inc()
	})
}

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

// TestMetricsHandler_ServesPrometheusFormat checks the private registry is exposed in text format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	WeatherReportsTotal.WithLabelValues("missing_parameter").Inc()

	body := scrape(t)
	assert.Contains(t, body, `weatherReportsTotal{outcome="missing_parameter"}`)
	assert.Contains(t, body, "go_goroutines", "Go runtime collector registered")
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("test_component", "closed", "open")

	body := scrape(t)
	assert.Contains(t, body, `circuitBreakerState{component="test_component"} 2`)
	assert.Contains(t, body, `circuitBreakerTransitionsTotal{component="test_component",from="closed",to="open"} 1`)

	RecordCircuitBreakerTransition("test_component", "open", "half-open")
	assert.Contains(t, scrape(t), `circuitBreakerState{component="test_component"} 1`)
}

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/traffic"
)

func benchmarkRouter(c client.WeatherClient) http.Handler {
	h := newTestHandler(c, traffic.NewTracker(nil), zap.NewNop())
	return NewRouter(h, zap.NewNop(), NewInFlightTracker(), 5*time.Second)
}

func runBenchmark(b *testing.B, router http.Handler, target string) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkHandler_GetWeather_Success benchmarks the full middleware chain on a served report.
func BenchmarkHandler_GetWeather_Success(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{conditions: kcConditions}), "/api/weather?lat=39.1&lon=-94.6")
}

// BenchmarkHandler_GetWeather_Error benchmarks upstream failure mapping.
func BenchmarkHandler_GetWeather_Error(b *testing.B) {
	mock := &mockWeatherClient{err: &client.UpstreamError{StatusCode: 503, Message: client.FallbackUpstreamMessage}}
	runBenchmark(b, benchmarkRouter(mock), "/api/weather?lat=39.1&lon=-94.6")
}

// BenchmarkHandler_GetWeather_MissingParameter benchmarks the validation short-circuit.
func BenchmarkHandler_GetWeather_MissingParameter(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}), "/api/weather?lat=39.1")
}

// BenchmarkHandler_GetHealth benchmarks the health check endpoint.
func BenchmarkHandler_GetHealth(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}), "/health")
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/observability"
)

// NewRouter mounts /api/weather, /health and /metrics behind the shared middleware chain.
// Only /api/weather gets the request timeout since it is the only route that calls upstream.
func NewRouter(h *Handler, logger *zap.Logger, inflight *InFlightTracker, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(TracingMiddleware)
	router.Use(MetricsMiddleware(inflight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if requestTimeout > 0 {
		api.Use(TimeoutMiddleware(requestTimeout))
	}
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	return router
}

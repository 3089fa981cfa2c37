package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/models"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/reqctx"
	"github.com/kjstillabower/weather-display-service/internal/service"
	"github.com/kjstillabower/weather-display-service/internal/traffic"
	"github.com/kjstillabower/weather-display-service/internal/validation"
)

// Messages returned in {"message": ...} when the upstream gave nothing better.
const (
	MessageIncompleteData = "Incomplete weather data from provider"
	MessageUnknownFailure = "Unknown error occurred"
)

// Report outcome labels for observability.WeatherReportsTotal.
const (
	outcomeOK               = "ok"
	outcomeMissingParameter = "missing_parameter"
	outcomeInvalidParameter = "invalid_parameter"
	outcomeUpstreamFailure  = "upstream_failure"
	outcomeIncomplete       = "incomplete"
	outcomeUnknown          = "unknown"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CircuitOpen, when set, reports whether the upstream breaker is currently open.
	CircuitOpen func() bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	tracker        *traffic.Tracker
	healthConfig   HealthConfig
	logger         *zap.Logger
	shuttingDown   atomic.Bool

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker disables the error-rate health check.
func NewHandler(weatherService *service.WeatherService, tracker *traffic.Tracker, healthConfig HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		tracker:        tracker,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

// SetShuttingDown flips /health to shutting-down. Call when SIGTERM/SIGINT is received.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

// GetWeather handles GET /api/weather?lat=&lon=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	logger := reqctx.Logger(r.Context())
	q := r.URL.Query()

	lat, lon, err := validation.ValidateCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		outcome, status := outcomeInvalidParameter, http.StatusBadRequest
		if errors.Is(err, validation.ErrMissingParameter) {
			// Missing coordinates use the 500 {message} shape of upstream failures.
			outcome, status = outcomeMissingParameter, http.StatusInternalServerError
		}
		observability.WeatherReportsTotal.WithLabelValues(outcome).Inc()
		logger.Debug("rejected weather request", zap.String("reason", outcome), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	report, err := h.weatherService.GetReport(r.Context(), lat, lon)
	if err != nil {
		if h.tracker != nil {
			h.tracker.RecordError()
		}
		h.writeServiceError(w, r, err)
		return
	}
	if h.tracker != nil {
		h.tracker.RecordSuccess()
	}
	observability.WeatherReportsTotal.WithLabelValues(outcomeOK).Inc()
	writeJSON(w, http.StatusOK, report)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-display-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, open circuit breaker, error-rate
// breach, else healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig.CircuitOpen != nil && h.healthConfig.CircuitOpen() {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.tracker != nil && h.tracker.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {"message": ...} body shared by every non-2xx response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message})
}

// writeServiceError maps a GetReport failure to a 500 with a caller-safe message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	outcome, message := classifyServiceError(err)
	observability.WeatherReportsTotal.WithLabelValues(outcome).Inc()
	reqctx.Logger(r.Context()).Warn("weather request failed",
		zap.String("outcome", outcome),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, message)
}

// classifyServiceError returns the outcome label and the message sent to the caller.
// Provider messages pass through; transport details never do.
func classifyServiceError(err error) (outcome, message string) {
	var ue *client.UpstreamError
	switch {
	case errors.As(err, &ue):
		if ue.Message == "" {
			return outcomeUpstreamFailure, client.FallbackUpstreamMessage
		}
		return outcomeUpstreamFailure, ue.Message
	case errors.Is(err, client.ErrIncompleteResponse):
		return outcomeIncomplete, MessageIncompleteData
	case errors.Is(err, client.ErrUpstreamUnreachable),
		errors.Is(err, client.ErrMalformedResponse),
		errors.Is(err, client.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		return outcomeUpstreamFailure, client.FallbackUpstreamMessage
	default:
		return outcomeUnknown, MessageUnknownFailure
	}
}

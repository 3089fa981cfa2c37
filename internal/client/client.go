package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/models"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/reqctx"
)

// WeatherClient fetches current conditions for a coordinate from the upstream provider.
// lat and lon are passed through as given; callers validate them.
type WeatherClient interface {
	GetCurrentConditions(ctx context.Context, lat, lon string) (models.Conditions, error)
}

var (
	ErrInvalidAPIKey       = errors.New("invalid API key")
	ErrUpstreamFailure     = errors.New("upstream failure")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
	ErrIncompleteResponse  = errors.New("incomplete upstream response")
	ErrCircuitOpen         = errors.New("circuit breaker open")
)

// FallbackUpstreamMessage is used when the provider fails without saying why.
const FallbackUpstreamMessage = "Failed to fetch weather data"

// Units is the unit system requested upstream. Reports are labelled °F and mph, so it is
// not configurable.
const Units = "imperial"

// maxBodyBytes bounds how much of an upstream body is read.
const maxBodyBytes = 1 << 20

// UpstreamError is a non-2xx response from the provider. Message is the provider's own
// explanation, or FallbackUpstreamMessage when the body carried none.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrUpstreamFailure, and ErrInvalidAPIKey for 401s.
func (e *UpstreamError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized {
		return []error{ErrUpstreamFailure, ErrInvalidAPIKey}
	}
	return []error{ErrUpstreamFailure}
}

// OneCallClient calls the OpenWeather One Call API. It makes exactly one attempt per call.
type OneCallClient struct {
	apiKey  string
	apiURL  string
	exclude string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOneCallClient returns a client for apiURL with a per-call timeout.
// Excludes the hourly and daily sections unless SetExclude says otherwise.
func NewOneCallClient(apiKey, apiURL string, timeout time.Duration) (*OneCallClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	return &OneCallClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		exclude: "hourly,daily",
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetExclude overrides the response sections the provider is asked to omit.
func (c *OneCallClient) SetExclude(exclude string) {
	if exclude != "" {
		c.exclude = exclude
	}
}

// SetCircuitBreaker wraps every upstream call in breaker. Calls rejected by an open
// breaker fail with ErrCircuitOpen without touching the network.
func (c *OneCallClient) SetCircuitBreaker(breaker *gobreaker.CircuitBreaker) {
	c.breaker = breaker
}

type oneCallResponse struct {
	Timezone string `json:"timezone"`
	Current  *struct {
		Temp      *float64 `json:"temp"`
		Humidity  *float64 `json:"humidity"`
		WindSpeed *float64 `json:"wind_speed"`
	} `json:"current"`
}

// GetCurrentConditions performs a single One Call request.
func (c *OneCallClient) GetCurrentConditions(ctx context.Context, lat, lon string) (models.Conditions, error) {
	ctx, span := observability.Tracer().Start(ctx, "openweather.onecall")
	defer span.End()
	span.SetAttributes(attribute.String("weather.lat", lat), attribute.String("weather.lon", lon))

	var (
		result models.Conditions
		err    error
	)
	if c.breaker != nil {
		var v interface{}
		v, err = c.breaker.Execute(func() (interface{}, error) {
			return c.callAPI(ctx, lat, lon)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		} else if err == nil {
			result = v.(models.Conditions)
		}
	} else {
		result, err = c.callAPI(ctx, lat, lon)
	}

	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CategorizeError(err)))
		return models.Conditions{}, err
	}
	return result, nil
}

func (c *OneCallClient) callAPI(ctx context.Context, lat, lon string) (models.Conditions, error) {
	start := time.Now()
	logger := reqctx.Logger(ctx)

	req, err := c.buildRequest(ctx, lat, lon)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.Conditions{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)
		// *url.Error embeds the request URL, which carries appid.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Conditions{}, fmt.Errorf("%w: request timeout: %w", ErrUpstreamUnreachable, err)
		}
		return models.Conditions{}, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)
	logger.Debug("upstream responded", zap.Int("status", resp.StatusCode), zap.Float64("duration_seconds", duration))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Conditions{}, fmt.Errorf("%w: read response body: %w", ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Conditions{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}
	}

	var apiResp oneCallResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Conditions{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	return mapResponse(apiResp)
}

func (c *OneCallClient) buildRequest(ctx context.Context, lat, lon string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("exclude", c.exclude)
	params.Set("units", Units)
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if corrID := reqctx.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// upstreamMessage extracts the provider's explanation from an error body.
// OpenWeather uses "message"; some gateways use "error". Non-string values are ignored.
func upstreamMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return FallbackUpstreamMessage
	}
	for _, key := range []string{"error", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return FallbackUpstreamMessage
}

func mapResponse(apiResp oneCallResponse) (models.Conditions, error) {
	cur := apiResp.Current
	if apiResp.Timezone == "" || cur == nil || cur.Temp == nil || cur.Humidity == nil || cur.WindSpeed == nil {
		return models.Conditions{}, ErrIncompleteResponse
	}
	return models.Conditions{
		Timezone:  apiResp.Timezone,
		Temp:      *cur.Temp,
		Humidity:  *cur.Humidity,
		WindSpeed: *cur.WindSpeed,
	}, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// NewCircuitBreaker builds the breaker used around upstream calls. It trips after
// failureThreshold consecutive failures and lets one trial call through after timeout. Upstream 4xx
// responses other than 429 are the caller's fault and do not count as failures.
func NewCircuitBreaker(name string, failureThreshold int, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ue *UpstreamError
			if errors.As(err, &ue) {
				return ue.StatusCode >= 400 && ue.StatusCode < 500 && ue.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Info("circuit breaker state changed",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kjstillabower/weather-display-service/internal/geo"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

// FallbackMessage is shown when the proxy fails without a message of its own.
const FallbackMessage = "Failed to fetch weather data"

// maxBodyBytes bounds how much of a proxy response is read.
const maxBodyBytes = 1 << 20

// Fetcher retrieves a report for a coordinate. Implementations make one attempt.
type Fetcher interface {
	Fetch(ctx context.Context, c geo.Coordinate) (models.WeatherReport, error)
}

// FetchError is a failed proxy call. Message is what the user sees.
type FetchError struct {
	StatusCode int // 0 when the proxy was never reached
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("proxy unreachable: %s", e.Message)
	}
	return fmt.Sprintf("proxy HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ProxyClient calls GET {base}/api/weather on the weather proxy.
type ProxyClient struct {
	baseURL string
	client  *http.Client
}

// NewProxyClient returns a ProxyClient for baseURL (scheme and host, optional path prefix).
func NewProxyClient(baseURL string, timeout time.Duration) (*ProxyClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q must be an absolute http(s) URL", baseURL)
	}
	return &ProxyClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Fetch requests the report for c. Any non-2xx or transport failure is a *FetchError whose
// Message is the proxy's own message when it sent one.
func (p *ProxyClient) Fetch(ctx context.Context, c geo.Coordinate) (models.WeatherReport, error) {
	q := url.Values{}
	q.Set("lat", c.LatString())
	q.Set("lon", c.LonString())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/weather?"+q.Encode(), nil)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		return models.WeatherReport{}, &FetchError{Message: FallbackMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.WeatherReport{}, &FetchError{StatusCode: resp.StatusCode, Message: FallbackMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.WeatherReport{}, &FetchError{StatusCode: resp.StatusCode, Message: proxyMessage(body)}
	}

	var report models.WeatherReport
	if err := json.Unmarshal(body, &report); err != nil {
		return models.WeatherReport{}, &FetchError{
			StatusCode: resp.StatusCode,
			Message:    FallbackMessage,
			Err:        fmt.Errorf("decode report: %w", err),
		}
	}
	return report, nil
}

func proxyMessage(body []byte) string {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return FallbackMessage
}

// errorMessage returns the user-facing text for a fetch failure.
func errorMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return FallbackMessage
}

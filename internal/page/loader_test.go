package page

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-display-service/internal/geo"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

// recordingFetcher records the coordinates it was asked for and replies with a fixed result.
type recordingFetcher struct {
	mu     sync.Mutex
	report models.WeatherReport
	err    error
	coords []geo.Coordinate
}

func (f *recordingFetcher) Fetch(ctx context.Context, c geo.Coordinate) (models.WeatherReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coords = append(f.coords, c)
	return f.report, f.err
}

func (f *recordingFetcher) calls() []geo.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]geo.Coordinate(nil), f.coords...)
}

func completeReport(lat, lon string) models.WeatherReport {
	return models.WeatherReport{
		Lat:       lat,
		Lon:       lon,
		Timezone:  "Europe/London",
		Timestamp: &models.Timestamp{Time: "09:30 AM", Date: "6/1/2024"},
		Current: &models.Current{
			Temp:      models.Float(61),
			Humidity:  models.Float(70),
			WindSpeed: models.Float(3.6),
		},
	}
}

func failingLocator() geo.Locator {
	return geo.LocatorFunc(func(ctx context.Context) (geo.Coordinate, error) {
		return geo.Coordinate{}, errors.New("user denied geolocation")
	})
}

func TestLoad_GeolocationSuccessTargetsExactCoordinate(t *testing.T) {
	fetcher := &recordingFetcher{report: completeReport("51.5", "-0.12")}
	loader := NewLoader(geo.NewStatic(geo.Coordinate{Latitude: 51.5, Longitude: -0.12}), fetcher, zap.NewNop())

	m := loader.Load(context.Background())

	calls := fetcher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, geo.Coordinate{Latitude: 51.5, Longitude: -0.12}, calls[0])
	assert.False(t, m.UsedFallback)
	assert.False(t, m.Loading)
	assert.Empty(t, m.Err)
	assert.Equal(t, ViewReport, m.View())
}

func TestLoad_GeolocationFailureUsesFallback(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fetcher := &recordingFetcher{report: completeReport("39.099724", "-94.578331")}
	loader := NewLoader(failingLocator(), fetcher, zap.New(core))

	m := loader.Load(context.Background())

	calls := fetcher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 39.099724, calls[0].Latitude)
	assert.Equal(t, -94.578331, calls[0].Longitude)
	assert.True(t, m.UsedFallback)
	assert.Empty(t, m.Err, "geolocation failure is not surfaced as an error")
	assert.Equal(t, ViewReport, m.View())
	assert.Equal(t, 1, logs.FilterMessage("geolocation unavailable, using fallback coordinate").Len())
}

func TestLoad_OutOfRangeFixUsesFallback(t *testing.T) {
	fetcher := &recordingFetcher{report: completeReport("39.099724", "-94.578331")}
	locator := geo.LocatorFunc(func(ctx context.Context) (geo.Coordinate, error) {
		return geo.Coordinate{Latitude: 123, Longitude: 0}, nil
	})
	loader := NewLoader(locator, fetcher, zap.NewNop())

	m := loader.Load(context.Background())

	assert.True(t, m.UsedFallback)
	assert.Equal(t, geo.FallbackCoordinate, fetcher.calls()[0])
}

func TestLoad_NilLocatorAndCustomFallback(t *testing.T) {
	fetcher := &recordingFetcher{report: completeReport("1", "2")}
	loader := NewLoader(nil, fetcher, nil)
	loader.SetFallback(geo.Coordinate{Latitude: 1, Longitude: 2})

	m := loader.Load(context.Background())

	assert.True(t, m.UsedFallback)
	assert.Equal(t, geo.Coordinate{Latitude: 1, Longitude: 2}, fetcher.calls()[0])
}

func TestLoad_FetchErrorShowsMessage(t *testing.T) {
	fetcher := &recordingFetcher{err: &FetchError{StatusCode: 500, Message: "Invalid API key"}}
	loader := NewLoader(geo.NewStatic(geo.FallbackCoordinate), fetcher, zap.NewNop())

	m := loader.Load(context.Background())

	assert.False(t, m.Loading)
	assert.Equal(t, "Invalid API key", m.Err)
	assert.Nil(t, m.Report)
	assert.Equal(t, ViewError, m.View())

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf))
	assert.Equal(t, "Error: Invalid API key\n", buf.String())
}

func TestLoad_UntypedFetchErrorUsesFallbackMessage(t *testing.T) {
	fetcher := &recordingFetcher{err: errors.New("socket closed")}
	loader := NewLoader(nil, fetcher, zap.NewNop())

	m := loader.Load(context.Background())

	assert.Equal(t, FallbackMessage, m.Err)
}

// TestLoad_MissingCurrentNeverReachesDisplay verifies an incomplete report keeps the loading
// view and is flagged rather than rendered.
func TestLoad_MissingCurrentNeverReachesDisplay(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	report := completeReport("39.1", "-94.6")
	report.Current = nil
	fetcher := &recordingFetcher{report: report}
	loader := NewLoader(nil, fetcher, zap.New(core))

	m := loader.Load(context.Background())

	assert.False(t, m.Loading)
	assert.Empty(t, m.Err)
	assert.True(t, m.Incomplete)
	assert.Equal(t, ViewLoading, m.View())

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf))
	assert.Equal(t, "Loading...\n", buf.String())
	assert.NotContains(t, buf.String(), "Temperature")
	assert.Equal(t, 1, logs.FilterMessage("weather report incomplete, not displayed").Len())
}

func TestLoad_PartialCurrentIsIncomplete(t *testing.T) {
	report := completeReport("39.1", "-94.6")
	report.Current.WindSpeed = nil
	loader := NewLoader(nil, &recordingFetcher{report: report}, zap.NewNop())

	m := loader.Load(context.Background())

	assert.True(t, m.Incomplete)
	assert.Equal(t, ViewLoading, m.View())
}

func TestModel_ViewPrecedence(t *testing.T) {
	full := completeReport("1", "2")
	tests := []struct {
		name  string
		model Model
		want  View
	}{
		{"initial", Model{Loading: true}, ViewLoading},
		{"error wins over report", Model{Err: "boom", Report: &full}, ViewError},
		{"report", Model{Report: &full}, ViewReport},
		{"empty report", Model{Report: &models.WeatherReport{}}, ViewLoading},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.model.View())
		})
	}
}

func TestModel_RenderReport(t *testing.T) {
	full := completeReport("51.5", "-0.12")
	var buf bytes.Buffer
	require.NoError(t, Model{Report: &full}.Render(&buf))
	assert.Contains(t, buf.String(), "Weather for Latitude 51.5 Longitude -0.12 (Europe/London)")
	assert.Contains(t, buf.String(), "Wind Speed: 3.6 m/s")
}

func TestView_String(t *testing.T) {
	assert.Equal(t, "loading", ViewLoading.String())
	assert.Equal(t, "error", ViewError.String())
	assert.Equal(t, "report", ViewReport.String())
}

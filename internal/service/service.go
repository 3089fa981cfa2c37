package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/models"
	"github.com/kjstillabower/weather-display-service/internal/reqctx"
)

// Display layouts for the report timestamp (en-US 12-hour clock and numeric date).
const (
	TimeLayout = "03:04 PM"
	DateLayout = "1/2/2006"
)

// WeatherService turns validated coordinates into a WeatherReport.
// It holds no per-request state; one upstream call is made per GetReport.
type WeatherService struct {
	client client.WeatherClient
	loc    *time.Location
	now    func() time.Time
}

// NewWeatherService creates a WeatherService. loc is the zone the timestamp is rendered in
// (nil means UTC); now defaults to time.Now.
func NewWeatherService(c client.WeatherClient, loc *time.Location, now func() time.Time) *WeatherService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &WeatherService{client: c, loc: loc, now: now}
}

// GetReport fetches current conditions for lat/lon and stamps the result with the time the
// report was assembled. lat and lon are echoed back as given.
func (s *WeatherService) GetReport(ctx context.Context, lat, lon string) (models.WeatherReport, error) {
	start := s.now()
	logger := reqctx.Logger(ctx)

	cond, err := s.client.GetCurrentConditions(ctx, lat, lon)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("fetch conditions for %s,%s: %w", lat, lon, err)
	}

	stamped := s.now().In(s.loc)
	report := models.WeatherReport{
		Lat:      lat,
		Lon:      lon,
		Timezone: cond.Timezone,
		Timestamp: &models.Timestamp{
			Time: stamped.Format(TimeLayout),
			Date: stamped.Format(DateLayout),
		},
		Current: &models.Current{
			Temp:      models.Float(cond.Temp),
			Humidity:  models.Float(cond.Humidity),
			WindSpeed: models.Float(cond.WindSpeed),
		},
	}
	logger.Debug("weather report assembled",
		zap.String("lat", lat),
		zap.String("lon", lon),
		zap.String("timezone", cond.Timezone),
		zap.Duration("duration", stamped.Sub(start)),
	)
	return report, nil
}

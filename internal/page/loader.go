// Package page runs the client side of a weather lookup: locate, fetch through the proxy,
// and settle on exactly one of the loading, error or report views.
package page

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/display"
	"github.com/kjstillabower/weather-display-service/internal/geo"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

// View is the view a Model resolves to.
type View int

const (
	ViewLoading View = iota
	ViewError
	ViewReport
)

func (v View) String() string {
	switch v {
	case ViewError:
		return "error"
	case ViewReport:
		return "report"
	default:
		return "loading"
	}
}

// Model is the outcome of one load cycle.
type Model struct {
	Loading bool
	Err     string
	Report  *models.WeatherReport
	// Incomplete is set when the proxy answered 2xx with a report the display cannot show.
	Incomplete bool
	// Coordinate is what the report was requested for; UsedFallback marks the fallback.
	Coordinate   geo.Coordinate
	UsedFallback bool
}

// View picks the view: an error wins, then a displayable report, else loading.
func (m Model) View() View {
	switch {
	case m.Err != "":
		return ViewError
	case m.Report.Displayable():
		return ViewReport
	default:
		return ViewLoading
	}
}

// Render writes the view selected by View.
func (m Model) Render(w io.Writer) error {
	switch m.View() {
	case ViewError:
		return display.Error(w, m.Err)
	case ViewReport:
		return display.Report(w, m.Report)
	default:
		return display.Loading(w)
	}
}

// Loader runs load cycles. It is safe for concurrent use; cycles share no state.
type Loader struct {
	locator  geo.Locator
	fetcher  Fetcher
	fallback geo.Coordinate
	logger   *zap.Logger
}

// NewLoader returns a Loader. A nil locator always uses the fallback coordinate.
func NewLoader(locator geo.Locator, fetcher Fetcher, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		locator:  locator,
		fetcher:  fetcher,
		fallback: geo.FallbackCoordinate,
		logger:   logger,
	}
}

// SetFallback replaces the coordinate used when location is unavailable.
func (l *Loader) SetFallback(c geo.Coordinate) {
	l.fallback = c
}

// Load resolves a coordinate, fetches one report for it and returns the settled Model.
// Loading is always false on return.
func (l *Loader) Load(ctx context.Context) (m Model) {
	m.Loading = true
	defer func() { m.Loading = false }()

	m.Coordinate, m.UsedFallback = l.resolve(ctx)

	report, err := l.fetcher.Fetch(ctx, m.Coordinate)
	if err != nil {
		m.Err = errorMessage(err)
		l.logger.Warn("weather fetch failed",
			zap.String("lat", m.Coordinate.LatString()),
			zap.String("lon", m.Coordinate.LonString()),
			zap.Error(err),
		)
		return m
	}

	m.Report = &report
	if !report.Displayable() {
		m.Incomplete = true
		l.logger.Warn("weather report incomplete, not displayed",
			zap.String("lat", m.Coordinate.LatString()),
			zap.String("lon", m.Coordinate.LonString()),
		)
	}
	return m
}

// resolve asks the locator once and falls back on any failure.
func (l *Loader) resolve(ctx context.Context) (geo.Coordinate, bool) {
	if l.locator == nil {
		l.logger.Info("no locator configured, using fallback coordinate")
		return l.fallback, true
	}
	c, err := l.locator.Locate(ctx)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		l.logger.Info("geolocation unavailable, using fallback coordinate",
			zap.Float64("lat", l.fallback.Latitude),
			zap.Float64("lon", l.fallback.Longitude),
			zap.Error(err),
		)
		return l.fallback, true
	}
	return c, false
}

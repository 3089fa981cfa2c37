// Package geo resolves the coordinate a weather lookup is made for.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnavailable is returned when no position fix can be obtained.
var ErrUnavailable = errors.New("position unavailable")

// ErrOutOfRange is returned for coordinates outside [-90,90] / [-180,180].
var ErrOutOfRange = errors.New("coordinate out of range")

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FallbackCoordinate is Kansas City, MO. Used whenever a Locator cannot produce a fix.
var FallbackCoordinate = Coordinate{Latitude: 39.099724, Longitude: -94.578331}

// Validate checks that c is finite and within range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrOutOfRange, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrOutOfRange, c.Longitude)
	}
	return nil
}

// LatString formats the latitude the shortest way that round-trips.
func (c Coordinate) LatString() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

// LonString formats the longitude the shortest way that round-trips.
func (c Coordinate) LonString() string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Locator produces a single position fix. Implementations must not retry.
type Locator interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Coordinate, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (Coordinate, error) {
	return f(ctx)
}

// Static is a Locator with a fixed fix, e.g. coordinates supplied on the command line.
// A nil Static reports ErrUnavailable.
type Static struct {
	coord *Coordinate
}

// NewStatic returns a Static locator for c.
func NewStatic(c Coordinate) *Static {
	return &Static{coord: &c}
}

// Locate returns the configured fix.
func (s *Static) Locate(ctx context.Context) (Coordinate, error) {
	if s == nil || s.coord == nil {
		return Coordinate{}, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	if err := s.coord.Validate(); err != nil {
		return Coordinate{}, err
	}
	return *s.coord, nil
}

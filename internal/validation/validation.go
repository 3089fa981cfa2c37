package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingParameter is returned when lat or lon is absent or whitespace-only.
var ErrMissingParameter = errors.New("Latitude and Longitude are required!")

// ErrInvalidParameter is returned when lat or lon is not a finite number in range.
var ErrInvalidParameter = errors.New("invalid coordinate")

// ValidateCoordinates trims both query values and checks presence, then that each parses
// as a finite float within [-90,90] (lat) or [-180,180] (lon).
// Returns the trimmed strings unchanged in form so they can be echoed back to the caller.
func ValidateCoordinates(lat, lon string) (string, string, error) {
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return "", "", ErrMissingParameter
	}
	if err := checkRange("latitude", lat, 90); err != nil {
		return "", "", err
	}
	if err := checkRange("longitude", lon, 180); err != nil {
		return "", "", err
	}
	return lat, lon, nil
}

func checkRange(name, s string, limit float64) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, name)
	}
	if v < -limit || v > limit {
		return fmt.Errorf("%w: %s must be between %g and %g", ErrInvalidParameter, name, -limit, limit)
	}
	return nil
}

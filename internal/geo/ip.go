package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultIPLookupURL is the ip-api.com JSON endpoint.
const DefaultIPLookupURL = "http://ip-api.com/json/"

// IPLocator approximates the device position from its public IP address.
type IPLocator struct {
	url    string
	client *http.Client
}

// NewIPLocator returns an IPLocator querying lookupURL (DefaultIPLookupURL when empty).
func NewIPLocator(lookupURL string, timeout time.Duration) *IPLocator {
	if lookupURL == "" {
		lookupURL = DefaultIPLookupURL
	}
	return &IPLocator{
		url:    lookupURL,
		client: &http.Client{Timeout: timeout},
	}
}

type ipLookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Locate performs one lookup. Any failure is reported as an error wrapping ErrUnavailable.
func (l *IPLocator) Locate(ctx context.Context) (Coordinate, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: invalid lookup URL: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("fields", "status,message,lat,lon")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Coordinate{}, fmt.Errorf("%w: lookup failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Coordinate{}, fmt.Errorf("%w: lookup returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	var lr ipLookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return Coordinate{}, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}
	if lr.Status != "success" {
		msg := lr.Message
		if msg == "" {
			msg = "status " + lr.Status
		}
		return Coordinate{}, fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
	if lr.Lat == nil || lr.Lon == nil {
		return Coordinate{}, fmt.Errorf("%w: lookup response missing coordinates", ErrUnavailable)
	}

	c := Coordinate{Latitude: *lr.Lat, Longitude: *lr.Lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

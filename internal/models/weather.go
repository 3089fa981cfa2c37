package models

// WeatherReport is the normalized payload returned by GET /api/weather.
// Lat and Lon echo the query values the caller sent.
type WeatherReport struct {
	Lat       string     `json:"lat"`
	Lon       string     `json:"lon"`
	Timezone  string     `json:"timezone"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
	Current   *Current   `json:"current,omitempty"`
}

// Timestamp is the server-side time the report was assembled, pre-formatted for display.
type Timestamp struct {
	Time string `json:"time"`
	Date string `json:"date"`
}

// Current holds the current conditions. Pointers distinguish a zero reading from a missing one.
type Current struct {
	Temp      *float64 `json:"temp,omitempty"`
	Humidity  *float64 `json:"humidity,omitempty"`
	WindSpeed *float64 `json:"windSpeed,omitempty"`
}

// Complete reports whether all three readings are present.
func (c *Current) Complete() bool {
	return c != nil && c.Temp != nil && c.Humidity != nil && c.WindSpeed != nil
}

// Displayable reports whether the report carries everything the display needs.
func (r *WeatherReport) Displayable() bool {
	if r == nil {
		return false
	}
	return r.Lat != "" && r.Lon != "" && r.Timezone != "" && r.Timestamp != nil && r.Current.Complete()
}

// ErrorResponse is the body of every non-2xx response from the proxy.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Conditions is what the upstream client extracts from a provider response.
type Conditions struct {
	Timezone  string
	Temp      float64
	Humidity  float64
	WindSpeed float64
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

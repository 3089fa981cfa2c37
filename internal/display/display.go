// Package display renders the three weather views as plain text.
// It holds no state and does not validate; callers decide which view applies.
package display

import (
	"io"
	"strconv"
	"text/template"

	"github.com/kjstillabower/weather-display-service/internal/models"
)

// Row icons.
const (
	IconTemperature = "🌡"
	IconHumidity    = "💧"
	IconWind        = "💨"
)

// LoadingText is the whole loading view.
const LoadingText = "Loading..."

var icons = map[string]string{
	"temp":     IconTemperature,
	"humidity": IconHumidity,
	"wind":     IconWind,
}

var funcs = template.FuncMap{
	"icon": func(name string) string { return icons[name] },
	"num": func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(funcs).Parse(
	`Weather for Latitude {{.Lat}} Longitude {{.Lon}} ({{.Timezone}})
{{with .Timestamp}}Last updated: {{.Date}} {{.Time}}
{{end}}{{with .Current}}{{icon "temp"}} Temperature: {{num .Temp}}°F
{{icon "humidity"}} Humidity: {{num .Humidity}}%
{{icon "wind"}} Wind Speed: {{num .WindSpeed}} m/s
{{end}}`))

// Report writes the weather view for r.
func Report(w io.Writer, r *models.WeatherReport) error {
	if r == nil {
		r = &models.WeatherReport{}
	}
	return reportTmpl.Execute(w, r)
}

// Loading writes the loading view.
func Loading(w io.Writer) error {
	_, err := io.WriteString(w, LoadingText+"\n")
	return err
}

// Error writes the error view.
func Error(w io.Writer, msg string) error {
	_, err := io.WriteString(w, "Error: "+msg+"\n")
	return err
}

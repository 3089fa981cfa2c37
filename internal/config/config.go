package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // report.timezone must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-display-service/internal/traffic"
)

// DefaultOneCallURL is the OpenWeather One Call 3.0 endpoint.
const DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	Exclude           string

	// TimestampLocation is the zone report timestamps are rendered in.
	TimestampLocation *time.Location

	RequestTimeout          time.Duration
	ShutdownTimeout         time.Duration
	ShutdownInFlightTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerTimeout          time.Duration

	TracingCollectorURL string
	ServiceName         string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Exclude string `yaml:"exclude"`
	} `yaml:"weather_api"`

	Report struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"report"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	CircuitBreaker struct {
		Enabled          bool   `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Tracing struct {
		CollectorURL string `yaml:"collector_url"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"tracing"`
}

type secretsFile struct {
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is loaded first if present; it never overrides
// variables already set. API key comes from OPENWEATHER_API_KEY env or the secrets file.
// Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY required (set env or config/secrets.yaml openweather_api_key)")
	}

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = DefaultOneCallURL
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.Exclude = strings.TrimSpace(fc.WeatherAPI.Exclude)
	if cfg.Exclude == "" {
		cfg.Exclude = "hourly,daily"
	}

	cfg.TimestampLocation = time.Local
	if tz := strings.TrimSpace(fc.Report.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("report.timezone: %w", err)
		}
		cfg.TimestampLocation = loc
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.CircuitBreakerEnabled = fc.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.TracingCollectorURL = strings.TrimSpace(os.Getenv("OTEL_COLLECTOR_URL"))
	if cfg.TracingCollectorURL == "" {
		cfg.TracingCollectorURL = strings.TrimSpace(fc.Tracing.CollectorURL)
	}
	cfg.ServiceName = strings.TrimSpace(fc.Tracing.ServiceName)
	if cfg.ServiceName == "" {
		cfg.ServiceName = "weather-display-service"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey prefers the OPENWEATHER_API_KEY env var and falls back to config/secrets.yaml.
// A missing secrets file is not an error; an unreadable or malformed one is.
func loadAPIKey(cwd string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.OpenWeatherAPIKey), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// RequestTimeout is raised above WeatherAPITimeout so the upstream deadline fires first.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.DegradedWindow > traffic.MaxWindow {
		return fmt.Errorf("health.degraded_window must be at most %s, got %s", traffic.MaxWindow, cfg.DegradedWindow)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}

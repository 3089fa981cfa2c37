// Command weather shows current conditions for the caller's position by way of the weather
// proxy, optionally refreshing on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/geo"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/page"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitIncomplete = 3
)

const defaultProxyURL = "http://localhost:8080"

type options struct {
	proxy   string
	lat     string
	lon     string
	locate  string
	ipURL   string
	refresh string
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewConsoleLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(exitError)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, logger)
	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	proxyDefault := os.Getenv("WEATHER_PROXY_URL")
	if proxyDefault == "" {
		proxyDefault = defaultProxyURL
	}

	var o options
	fs := flag.NewFlagSet("weather", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.proxy, "proxy", proxyDefault, "weather proxy base URL (env WEATHER_PROXY_URL)")
	fs.StringVar(&o.lat, "lat", "", "latitude of the position fix")
	fs.StringVar(&o.lon, "lon", "", "longitude of the position fix")
	fs.StringVar(&o.locate, "locate", "", `position source when -lat/-lon are absent: "ip" or empty for the fallback`)
	fs.StringVar(&o.ipURL, "ip-url", geo.DefaultIPLookupURL, "IP geolocation endpoint used with -locate ip")
	fs.StringVar(&o.refresh, "refresh", "", `cron schedule for refreshing, e.g. "`+page.DefaultRefresh+`"; empty runs once`)
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "timeout for each load cycle")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if (o.lat == "") != (o.lon == "") {
		return o, errors.New("-lat and -lon must be given together")
	}
	if o.locate != "" && o.locate != "ip" {
		return o, fmt.Errorf("unknown -locate %q", o.locate)
	}
	if o.timeout <= 0 {
		return o, errors.New("-timeout must be positive")
	}
	return o, nil
}

// buildLocator returns the device-fix stand-in selected by the flags. A nil locator means
// the loader goes straight to the fallback coordinate. Coordinates typed on the command line
// are rejected here rather than falling back.
func buildLocator(o options) (geo.Locator, error) {
	if o.lat != "" {
		lat, err := strconv.ParseFloat(o.lat, 64)
		if err != nil {
			return nil, fmt.Errorf("-lat: %w", err)
		}
		lon, err := strconv.ParseFloat(o.lon, 64)
		if err != nil {
			return nil, fmt.Errorf("-lon: %w", err)
		}
		c := geo.Coordinate{Latitude: lat, Longitude: lon}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return geo.NewStatic(c), nil
	}
	if o.locate == "ip" {
		return geo.NewIPLocator(o.ipURL, o.timeout), nil
	}
	return nil, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *zap.Logger) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "weather: %v\n", err)
		return exitUsage
	}

	locator, err := buildLocator(o)
	if err != nil {
		fmt.Fprintf(stderr, "weather: %v\n", err)
		return exitUsage
	}
	fetcher, err := page.NewProxyClient(o.proxy, o.timeout)
	if err != nil {
		fmt.Fprintf(stderr, "weather: %v\n", err)
		return exitUsage
	}
	loader := page.NewLoader(locator, fetcher, logger)

	var mu sync.Mutex
	show := func(m page.Model) int {
		mu.Lock()
		defer mu.Unlock()
		if err := m.Render(stdout); err != nil {
			logger.Error("render", zap.Error(err))
		}
		return exitCode(m, stderr)
	}

	loadCtx, cancel := context.WithTimeout(ctx, o.timeout)
	code := show(loader.Load(loadCtx))
	cancel()

	if o.refresh == "" {
		return code
	}

	scheduler, err := page.NewScheduler(o.refresh, loader, o.timeout, func(m page.Model) {
		_ = show(m)
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "weather: %v\n", err)
		return exitUsage
	}
	scheduler.Start()
	logger.Info("refresh scheduled", zap.String("schedule", o.refresh))

	<-ctx.Done()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), o.timeout)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Warn("load cycle still running at exit", zap.Error(err))
	}
	return exitOK
}

// exitCode maps a settled Model to the process exit code, explaining incomplete reports
// since their view alone would look like a load that never finished.
func exitCode(m page.Model, stderr io.Writer) int {
	switch m.View() {
	case page.ViewReport:
		return exitOK
	case page.ViewError:
		return exitError
	}
	if m.Incomplete {
		fmt.Fprintln(stderr, "weather: proxy returned an incomplete report")
		return exitIncomplete
	}
	return exitError
}

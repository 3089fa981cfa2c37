package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/config"
	httphandler "github.com/kjstillabower/weather-display-service/internal/http"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/service"
	"github.com/kjstillabower/weather-display-service/internal/traffic"
)

const (
	inFlightCheckInterval = 100 * time.Millisecond
	telemetryFlushTimeout = 5 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// run serves the proxy on cfg.ServerPort until ctx is done, then drains and flushes telemetry.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var shutdownTracing func(context.Context) error
	if cfg.TracingCollectorURL != "" {
		var err error
		shutdownTracing, err = observability.InitTracing(ctx, cfg.ServiceName, cfg.TracingCollectorURL)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		logger.Info("tracing enabled", zap.String("collector", cfg.TracingCollectorURL))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := observability.FlushTelemetry(flushCtx, logger, shutdownTracing); err != nil {
			logger.Error("telemetry flush", zap.Error(err))
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.serve(ctx, ln)
}

// app is the wired proxy: upstream client, optional breaker, handler and HTTP server.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	handler  *httphandler.Handler
	inflight *httphandler.InFlightTracker
	breaker  *gobreaker.CircuitBreaker
	server   *http.Server
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	weatherClient, err := client.NewOneCallClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	weatherClient.SetExclude(cfg.Exclude)

	a := &app{cfg: cfg, logger: logger}
	healthConfig := httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if cfg.CircuitBreakerEnabled {
		cb := client.NewCircuitBreaker("weather_api", cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout, logger)
		weatherClient.SetCircuitBreaker(cb)
		healthConfig.CircuitOpen = func() bool { return cb.State() == gobreaker.StateOpen }
		a.breaker = cb
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	weatherService := service.NewWeatherService(weatherClient, cfg.TimestampLocation, nil)
	a.handler = httphandler.NewHandler(weatherService, traffic.NewTracker(nil), healthConfig, logger)
	a.inflight = httphandler.NewInFlightTracker()
	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           httphandler.NewRouter(a.handler, logger, a.inflight, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}
	return a, nil
}

// serve accepts on ln until ctx is done, then drains. A listener failure is returned as is.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("addr", ln.Addr().String()),
			zap.String("upstream", a.cfg.WeatherAPIURL),
			zap.String("timestamp_zone", a.cfg.TimestampLocation.String()))
		errCh <- a.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	a.drain()
	return nil
}

// drain flips /health to shutting-down, stops the server, then waits for in-flight requests.
func (a *app) drain() {
	a.logger.Info("graceful shutdown triggered")
	a.handler.SetShuttingDown(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown", zap.Error(err))
	}

	a.logger.Info("waiting for in-flight requests", zap.Int64("count", a.inflight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := a.inflight.WaitForZero(waitCtx, inFlightCheckInterval); err != nil {
		a.logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", a.inflight.Count()))
	}
}

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const reportJSON = `{"lat":"51.5","lon":"-0.12","timezone":"Europe/London","timestamp":{"time":"09:30 AM","date":"6/1/2024"},"current":{"temp":61,"humidity":70,"windSpeed":3.6}}`

func fakeProxy(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &query
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, zap.NewNop())
	return code, stdout.String(), stderr.String()
}

func TestRun_ExplicitCoordinate(t *testing.T) {
	srv, query := fakeProxy(t, http.StatusOK, reportJSON)

	code, out, _ := runCLI("-proxy", srv.URL, "-lat", "51.5", "-lon", "-0.12")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, *query, "lat=51.5")
	assert.Contains(t, *query, "lon=-0.12")
	assert.Contains(t, out, "Temperature: 61°F")
}

func TestRun_DefaultsToFallback(t *testing.T) {
	srv, query := fakeProxy(t, http.StatusOK, reportJSON)

	code, _, _ := runCLI("-proxy", srv.URL)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, *query, "lat=39.099724")
	assert.Contains(t, *query, "lon=-94.578331")
}

func TestRun_ProxyError(t *testing.T) {
	srv, _ := fakeProxy(t, http.StatusInternalServerError, `{"message":"Invalid API key"}`)

	code, out, _ := runCLI("-proxy", srv.URL)

	assert.Equal(t, exitError, code)
	assert.Equal(t, "Error: Invalid API key\n", out)
}

func TestRun_IncompleteReport(t *testing.T) {
	srv, _ := fakeProxy(t, http.StatusOK, `{"lat":"1","lon":"2","timezone":"UTC"}`)

	code, out, errOut := runCLI("-proxy", srv.URL)

	assert.Equal(t, exitIncomplete, code)
	assert.Equal(t, "Loading...\n", out)
	assert.Contains(t, errOut, "incomplete report")
}

func TestRun_IPLocate(t *testing.T) {
	ip := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":48.8566,"lon":2.3522}`))
	}))
	defer ip.Close()
	srv, query := fakeProxy(t, http.StatusOK, reportJSON)

	code, _, _ := runCLI("-proxy", srv.URL, "-locate", "ip", "-ip-url", ip.URL)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, *query, "lat=48.8566")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"lat without lon", []string{"-lat", "1"}},
		{"bad lat", []string{"-lat", "north", "-lon", "1"}},
		{"bad locate", []string{"-locate", "gps"}},
		{"bad proxy", []string{"-proxy", "localhost"}},
		{"bad refresh", []string{"-refresh", "sometimes"}},
		{"unknown flag", []string{"-verbose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.name == "bad refresh" {
				srv, _ := fakeProxy(t, http.StatusOK, reportJSON)
				args = append([]string{"-proxy", srv.URL}, args...)
			}
			code, _, errOut := runCLI(args...)
			assert.Equal(t, exitUsage, code)
			assert.NotEmpty(t, strings.TrimSpace(errOut))
		})
	}
}

func TestRun_OutOfRangeCoordinateIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"lat above 90", []string{"-lat", "200", "-lon", "0"}},
		{"lat below -90", []string{"-lat", "-90.5", "-lon", "0"}},
		{"lon above 180", []string{"-lat", "0", "-lon", "181"}},
		{"infinite lon", []string{"-lat", "0", "-lon", "Inf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, query := fakeProxy(t, http.StatusOK, reportJSON)

			code, out, errOut := runCLI(append([]string{"-proxy", srv.URL}, tt.args...)...)

			assert.Equal(t, exitUsage, code)
			assert.Empty(t, out, "nothing rendered")
			assert.Contains(t, errOut, "out of range")
			assert.Empty(t, *query, "fallback coordinate must not be fetched")
		})
	}
}

func TestRun_RefreshStopsOnCancel(t *testing.T) {
	srv, _ := fakeProxy(t, http.StatusOK, reportJSON)
	ctx, cancel := context.WithCancel(context.Background())
	var stdout, stderr bytes.Buffer

	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"-proxy", srv.URL, "-refresh", "@every 1h"}, &stdout, &stderr, zap.NewNop())
	}()
	cancel()

	code := <-done
	require.Equal(t, exitOK, code)
}

package page

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/geo"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

type fetcherFunc func(ctx context.Context)

func (f fetcherFunc) Fetch(ctx context.Context, c geo.Coordinate) (models.WeatherReport, error) {
	f(ctx)
	return models.WeatherReport{}, nil
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	loader := NewLoader(nil, &recordingFetcher{}, zap.NewNop())
	_, err := NewScheduler("every now and then", loader, time.Second, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewScheduler_AcceptsDefault(t *testing.T) {
	loader := NewLoader(nil, &recordingFetcher{}, zap.NewNop())
	s, err := NewScheduler(DefaultRefresh, loader, time.Second, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RunsLoadCycles(t *testing.T) {
	fetcher := &recordingFetcher{report: completeReport("39.099724", "-94.578331")}
	loader := NewLoader(nil, fetcher, zap.NewNop())

	results := make(chan Model, 4)
	s, err := NewScheduler("@every 1s", loader, time.Second, func(m Model) {
		select {
		case results <- m:
		default:
		}
	}, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	select {
	case m := <-results:
		assert.False(t, m.Loading)
		assert.Equal(t, ViewReport, m.View())
	case <-time.After(3 * time.Second):
		t.Fatal("no load cycle within 3s")
	}
	assert.NotEmpty(t, fetcher.calls())
}

func TestScheduler_RunOnceAppliesTimeout(t *testing.T) {
	var deadline bool
	fetcher := fetcherFunc(func(ctx context.Context) {
		_, deadline = ctx.Deadline()
	})
	loader := NewLoader(nil, fetcher, zap.NewNop())
	s, err := NewScheduler(DefaultRefresh, loader, 50*time.Millisecond, nil, zap.NewNop())
	require.NoError(t, err)

	s.runOnce()

	assert.True(t, deadline)
}

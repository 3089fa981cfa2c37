//go:build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOneCallClient_Integration calls the live One Call API for the Kansas City fallback.
// Requires OPENWEATHER_API_KEY with a One Call 3.0 subscription.
func TestOneCallClient_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	client, err := NewOneCallClient(apiKey, "https://api.openweathermap.org/data/3.0/onecall", 5*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got, err := client.GetCurrentConditions(ctx, "39.099724", "-94.578331")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", got.Timezone)
	assert.GreaterOrEqual(t, got.Humidity, 0.0)
	assert.LessOrEqual(t, got.Humidity, 100.0)
}

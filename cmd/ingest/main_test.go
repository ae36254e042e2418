package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transitops/wmata-ingress/pkg/config"
)

func TestNewSourceCarriesAllAPISettings(t *testing.T) {
	cfg := &config.Config{
		API: &config.APIConfig{
			BaseURL:        "https://api.wmata.com/Bus.svc/json",
			APIKey:         "test-key",
			PageSize:       250,
			MaxPages:       20,
			RequestTimeout: 10 * time.Second,
			RetryAttempts:  5,
			RetryDelay:     2 * time.Second,
		},
		FetchWorkers: 4,
	}

	src := newSource(cfg, "/jStops", "Stops")

	require.Equal(t, "https://api.wmata.com/Bus.svc/json/jStops", src.Endpoint)
	require.Equal(t, "Stops", src.DataField)
	require.Equal(t, "test-key", src.Headers["api_key"])
	require.Equal(t, 250, src.PageSize)
	require.Equal(t, 20, src.MaxPages)
	require.Equal(t, 10*time.Second, src.RequestTimeout)
	require.Equal(t, 5, src.RetryAttempts)
	require.Equal(t, 2*time.Second, src.RetryDelay)
	require.Equal(t, 4, src.Workers)
}

func TestNewSourcePerFeedFields(t *testing.T) {
	cfg := &config.Config{
		API:          &config.APIConfig{BaseURL: "https://api.wmata.com/Bus.svc/json", APIKey: "k"},
		FetchWorkers: 1,
	}

	stops := newSource(cfg, "/jStops", "Stops")
	positions := newSource(cfg, "/jBusPositions", "BusPositions")

	require.NotEqual(t, stops.Endpoint, positions.Endpoint)
	require.Equal(t, "BusPositions", positions.DataField)
}

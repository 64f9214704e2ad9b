package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetch_ParsesCurrentWeather(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/forecast", r.URL.Path)
		gotQuery = map[string]string{
			"latitude":  r.URL.Query().Get("latitude"),
			"longitude": r.URL.Query().Get("longitude"),
			"current":   r.URL.Query().Get("current"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"current": {
				"temperature_2m": 26.4,
				"relative_humidity_2m": 78,
				"apparent_temperature": 29.1,
				"weather_code": 2
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 31.2304, 121.4737, zap.NewNop())
	data, err := client.Fetch(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 26.4, data.TemperatureCelsius, 1e-9)
	assert.InDelta(t, 78, data.Humidity, 1e-9)
	assert.InDelta(t, 29.1, data.FeelsLike, 1e-9)
	assert.Equal(t, "partly cloudy", data.Description)
	assert.NotZero(t, data.FetchedAt)

	assert.Equal(t, "31.2304", gotQuery["latitude"])
	assert.Equal(t, "121.4737", gotQuery["longitude"])
	assert.Equal(t, "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code", gotQuery["current"])
}

func TestFetch_UnknownWeatherCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current": {"temperature_2m": 20, "relative_humidity_2m": 50, "apparent_temperature": 20, "weather_code": 42}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, 0, zap.NewNop())
	data, err := client.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "unknown", data.Description)
}

func TestFetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, 0, zap.NewNop())
	_, err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

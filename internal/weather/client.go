// Package weather 提供天气快照拉取客户端（Open-Meteo 当前天气接口）
package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/models"
)

// currentWeatherResponse Open-Meteo 当前天气响应
type currentWeatherResponse struct {
	Current struct {
		Temperature2m       float64 `json:"temperature_2m"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
}

// weatherCodeDescription WMO 天气码 → 描述（常见码，其余归 unknown）
var weatherCodeDescription = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	51: "light drizzle",
	61: "light rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "light snow",
	80: "rain showers",
	95: "thunderstorm",
}

// Client 天气客户端
//
// 重试策略由客户端自持（resty 固定重试），
// 上层用熔断器包裹 Fetch 调用。
type Client struct {
	httpClient *resty.Client
	latitude   float64
	longitude  float64
	logger     *zap.Logger
}

// NewClient 创建天气客户端
func NewClient(baseURL string, latitude, longitude float64, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		latitude:   latitude,
		longitude:  longitude,
		logger:     logger,
	}
}

// Fetch 拉取当前天气快照
func (c *Client) Fetch(ctx context.Context) (*models.WeatherData, error) {
	var response currentWeatherResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  fmt.Sprintf("%.4f", c.latitude),
			"longitude": fmt.Sprintf("%.4f", c.longitude),
			"current":   "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code",
		}).
		SetResult(&response).
		Get("/v1/forecast")

	if err != nil {
		return nil, fmt.Errorf("failed to call weather API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode())
	}

	description, ok := weatherCodeDescription[response.Current.WeatherCode]
	if !ok {
		description = "unknown"
	}

	data := &models.WeatherData{
		TemperatureCelsius: response.Current.Temperature2m,
		Humidity:           response.Current.RelativeHumidity2m,
		FeelsLike:          response.Current.ApparentTemperature,
		Description:        description,
		FetchedAt:          time.Now().Unix(),
	}

	c.logger.Info("Weather snapshot fetched",
		zap.Float64("temperature", data.TemperatureCelsius),
		zap.Float64("feels_like", data.FeelsLike),
		zap.Float64("humidity", data.Humidity),
		zap.String("description", data.Description),
	)
	return data, nil
}

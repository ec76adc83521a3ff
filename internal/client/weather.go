package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-favorites/internal/models"
)

// Forecast feeds are cut to these lengths; later samples are neither decoded nor checked.
const (
	ForecastSamples = 8
	DailySamples    = 7
)

// WeatherClient fetches current conditions and forecasts for a city.
type WeatherClient interface {
	CurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error)
	Forecast(ctx context.Context, city string) ([]ForecastSample, error)
	DailyForecast(ctx context.Context, coord models.Coordinates) ([]DailySample, error)
}

// OpenWeatherClient talks to the OpenWeatherMap 2.5 API.
type OpenWeatherClient struct {
	apiKey    string
	baseURL   string
	transport transport
}

// NewOpenWeatherClient returns a client for baseURL (e.g. https://api.openweathermap.org/data/2.5).
// timeout bounds each HTTP call; zero means no client-side limit.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return &OpenWeatherClient{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: newTransport(timeout),
	}, nil
}

// CurrentWeather calls /weather. The snapshot is returned only when the payload's cod is the number 200.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("q", city)
	req, err := c.buildRequest("weather", params)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	body, err := c.transport.get(ctx, APIWeather, req)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return decodeCurrentWeather(body)
}

// Forecast calls /forecast and returns the first ForecastSamples 3-hourly samples.
// Success requires cod to be the string "200".
func (c *OpenWeatherClient) Forecast(ctx context.Context, city string) ([]ForecastSample, error) {
	params := url.Values{}
	params.Set("q", city)
	req, err := c.buildRequest("forecast", params)
	if err != nil {
		return nil, err
	}
	body, err := c.transport.get(ctx, APIForecast, req)
	if err != nil {
		return nil, err
	}
	return decodeForecast(body)
}

// DailyForecast calls /onecall with everything but the daily block excluded and returns
// the first DailySamples days. Success requires the daily list to be present.
func (c *OpenWeatherClient) DailyForecast(ctx context.Context, coord models.Coordinates) ([]DailySample, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	params.Set("exclude", "hourly,minutely,current")
	req, err := c.buildRequest("onecall", params)
	if err != nil {
		return nil, err
	}
	body, err := c.transport.get(ctx, APIOneCall, req)
	if err != nil {
		return nil, err
	}
	return decodeDailyForecast(body)
}

func (c *OpenWeatherClient) buildRequest(endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

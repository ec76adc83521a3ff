package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjstillabower/weather-favorites/internal/models"
)

// apiCode is the "cod" field of OpenWeatherMap payloads. The current-weather endpoint
// reports it as a number and the forecast endpoint as a string, so both forms are kept.
type apiCode struct {
	Value   string
	Numeric bool
}

func (c *apiCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = apiCode{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = apiCode{Value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = apiCode{Value: n.String(), Numeric: true}
	return nil
}

// envelope carries the status fields every OpenWeatherMap payload may include.
type envelope struct {
	Cod     apiCode         `json:"cod"`
	Message json.RawMessage `json:"message"`
}

func (e envelope) message() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

type forecastResponse struct {
	envelope
	List []struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	} `json:"list"`
}

type oneCallResponse struct {
	envelope
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp *struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
	} `json:"daily"`
}

type citySearchEntry struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Country   string   `json:"country"`
}

// ForecastSample is one timestamped sample of the 3-hourly forecast.
type ForecastSample struct {
	Time time.Time
	Temp float64
}

// DailySample is one day of the daily forecast.
type DailySample struct {
	Time    time.Time
	TempMin float64
	TempMax float64
}

func decodeCurrentWeather(body []byte) (models.WeatherSnapshot, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse weather: %w", ErrDecode, err)
	}
	if !env.Cod.Numeric || env.Cod.Value != "200" {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: cod %q: %s", ErrAPIStatus, env.Cod.Value, env.message())
	}
	var snap models.WeatherSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse weather: %w", ErrDecode, err)
	}
	return snap, nil
}

func decodeForecast(body []byte) ([]ForecastSample, error) {
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse forecast: %w", ErrDecode, err)
	}
	if resp.Cod.Numeric || resp.Cod.Value != "200" {
		return nil, fmt.Errorf("%w: cod %q: %s", ErrAPIStatus, resp.Cod.Value, resp.message())
	}
	if resp.List == nil {
		return nil, fmt.Errorf("%w: forecast has no list", ErrDecode)
	}
	list := resp.List[:min(len(resp.List), ForecastSamples)]
	out := make([]ForecastSample, 0, len(list))
	for i, e := range list {
		if e.Main == nil {
			return nil, fmt.Errorf("%w: forecast sample %d has no main", ErrDecode, i)
		}
		out = append(out, ForecastSample{Time: time.Unix(e.Dt, 0), Temp: e.Main.Temp})
	}
	return out, nil
}

func decodeDailyForecast(body []byte) ([]DailySample, error) {
	var resp oneCallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse daily forecast: %w", ErrDecode, err)
	}
	if resp.Daily == nil {
		if resp.Cod.Value != "" {
			return nil, fmt.Errorf("%w: cod %q: %s", ErrAPIStatus, resp.Cod.Value, resp.message())
		}
		return nil, fmt.Errorf("%w: daily forecast has no daily list", ErrDecode)
	}
	daily := resp.Daily[:min(len(resp.Daily), DailySamples)]
	out := make([]DailySample, 0, len(daily))
	for i, e := range daily {
		if e.Temp == nil {
			return nil, fmt.Errorf("%w: daily sample %d has no temp", ErrDecode, i)
		}
		out = append(out, DailySample{Time: time.Unix(e.Dt, 0), TempMin: e.Temp.Min, TempMax: e.Temp.Max})
	}
	return out, nil
}

func decodeCities(body []byte) ([]models.CityRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var entries []citySearchEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: parse cities: %w", ErrDecode, err)
	}
	out := make([]models.CityRecord, 0, len(entries))
	for _, e := range entries {
		city := models.CityRecord{Name: e.Name, Country: e.Country}
		if e.Latitude != nil && e.Longitude != nil {
			city.Coord = &models.Coordinates{Lat: *e.Latitude, Lon: *e.Longitude}
		}
		out = append(out, city)
	}
	return out, nil
}

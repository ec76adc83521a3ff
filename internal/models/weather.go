package models

// WeatherSnapshot is the current-conditions payload returned by the weather API.
// Fields are omitted when absent so a stored snapshot keeps the shape it arrived with.
type WeatherSnapshot struct {
	Cod     int                `json:"cod,omitempty"`
	Name    string             `json:"name,omitempty"`
	Dt      int64              `json:"dt,omitempty"`
	Coord   *Coordinates       `json:"coord,omitempty"`
	Main    *WeatherMain       `json:"main,omitempty"`
	Weather []WeatherCondition `json:"weather,omitempty"`
	Wind    *Wind              `json:"wind,omitempty"`
}

type WeatherMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like,omitempty"`
	TempMin   float64 `json:"temp_min,omitempty"`
	TempMax   float64 `json:"temp_max,omitempty"`
	Humidity  int     `json:"humidity,omitempty"`
	Pressure  int     `json:"pressure,omitempty"`
}

type WeatherCondition struct {
	ID          int    `json:"id,omitempty"`
	Main        string `json:"main,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type Wind struct {
	Speed float64 `json:"speed,omitempty"`
	Deg   int     `json:"deg,omitempty"`
}

// Conditions returns the most descriptive condition text, or "" when none was reported.
func (w WeatherSnapshot) Conditions() string {
	if len(w.Weather) == 0 {
		return ""
	}
	if w.Weather[0].Description != "" {
		return w.Weather[0].Description
	}
	return w.Weather[0].Main
}

// HourlyPoint is one sample of the short-range forecast.
type HourlyPoint struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
}

// DailyPoint is one day of the weekly forecast.
type DailyPoint struct {
	Date    string  `json:"date"`
	TempMin float64 `json:"tempMin"`
	TempMax float64 `json:"tempMax"`
}

package models

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CityRecord identifies a city by Name. Country is display data only and does not
// take part in matching, so homonyms in different countries collide.
type CityRecord struct {
	Name    string       `json:"name"`
	Coord   *Coordinates `json:"coord,omitempty"`
	Country string       `json:"country,omitempty"`
}

// FavoriteCity is a CityRecord plus the data attached to it by enrichment. A nil forecast
// was never requested and is left out of the stored JSON; an empty one is pending and is kept.
type FavoriteCity struct {
	CityRecord
	Weather        *WeatherSnapshot `json:"weather"`
	HourlyForecast []HourlyPoint    `json:"hourlyForecast,omitzero"`
	WeeklyForecast []DailyPoint     `json:"weeklyForecast,omitzero"`
	IsSelected     bool             `json:"isSelected,omitempty"`
}

// Clone returns a deep copy so callers can hand out snapshots without sharing slices or pointers.
func (f FavoriteCity) Clone() FavoriteCity {
	out := f
	if f.Coord != nil {
		c := *f.Coord
		out.Coord = &c
	}
	if f.Weather != nil {
		w := f.Weather.clone()
		out.Weather = &w
	}
	if f.HourlyForecast != nil {
		out.HourlyForecast = make([]HourlyPoint, len(f.HourlyForecast))
		copy(out.HourlyForecast, f.HourlyForecast)
	}
	if f.WeeklyForecast != nil {
		out.WeeklyForecast = make([]DailyPoint, len(f.WeeklyForecast))
		copy(out.WeeklyForecast, f.WeeklyForecast)
	}
	return out
}

func (w WeatherSnapshot) clone() WeatherSnapshot {
	out := w
	if w.Coord != nil {
		c := *w.Coord
		out.Coord = &c
	}
	if w.Main != nil {
		m := *w.Main
		out.Main = &m
	}
	if w.Wind != nil {
		wd := *w.Wind
		out.Wind = &wd
	}
	if w.Weather != nil {
		out.Weather = make([]WeatherCondition, len(w.Weather))
		copy(out.Weather, w.Weather)
	}
	return out
}

package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/search"
)

func newTable() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	return w
}

func renderSearch(results []search.Result, isFavorite func(models.CityRecord) bool) string {
	w := newTable()
	w.AppendHeader(table.Row{"", "City", "Country", "Coordinates", "Temp", "Conditions"})
	for _, r := range results {
		mark := ""
		if isFavorite(r.City) {
			mark = "*"
		}
		w.AppendRow(table.Row{mark, r.City.Name, r.City.Country, formatCoord(r.City.Coord), formatWeatherTemp(&r.Weather), r.Weather.Conditions()})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 5, Align: text.AlignRight}})
	return w.Render()
}

func renderFavorites(favs []models.FavoriteCity) string {
	w := newTable()
	w.AppendHeader(table.Row{"", "City", "Country", "Temp", "Conditions", "Hourly", "Weekly"})
	for _, f := range favs {
		mark := ""
		if f.IsSelected {
			mark = ">"
		}
		conditions := "-"
		if f.Weather != nil {
			conditions = f.Weather.Conditions()
		}
		w.AppendRow(table.Row{mark, f.Name, f.Country, formatWeatherTemp(f.Weather), conditions, len(f.HourlyForecast), len(f.WeeklyForecast)})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	w.AppendFooter(table.Row{"", fmt.Sprintf("%d favorites", len(favs))})
	return w.Render()
}

// renderForecast shows one favorite's current weather followed by whichever forecasts it has.
func renderForecast(f models.FavoriteCity) string {
	var b strings.Builder
	title := f.Name
	if f.Country != "" {
		title += ", " + f.Country
	}
	b.WriteString(title)
	if f.Weather != nil {
		fmt.Fprintf(&b, ": %s", formatWeatherTemp(f.Weather))
		if c := f.Weather.Conditions(); c != "" {
			fmt.Fprintf(&b, ", %s", c)
		}
	}
	b.WriteString("\n")

	if len(f.HourlyForecast) > 0 {
		w := newTable()
		w.SetTitle("Hourly")
		w.AppendHeader(table.Row{"Time", "Temp"})
		for _, p := range f.HourlyForecast {
			w.AppendRow(table.Row{p.Time, formatTemp(p.Temperature)})
		}
		w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		b.WriteString(w.Render())
		b.WriteString("\n")
	}
	if len(f.WeeklyForecast) > 0 {
		w := newTable()
		w.SetTitle("Weekly")
		w.AppendHeader(table.Row{"Date", "Min", "Max"})
		for _, p := range f.WeeklyForecast {
			w.AppendRow(table.Row{p.Date, formatTemp(p.TempMin), formatTemp(p.TempMax)})
		}
		w.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		b.WriteString(w.Render())
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTemp(t float64) string {
	return fmt.Sprintf("%.1f°C", t)
}

func formatWeatherTemp(w *models.WeatherSnapshot) string {
	if w == nil || w.Main == nil {
		return "-"
	}
	return formatTemp(w.Main.Temp)
}

func formatCoord(c *models.Coordinates) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%.2f, %.2f", c.Lat, c.Lon)
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestWeatherSnapshot_KeepsShape verifies that a stored snapshot re-encodes without
// gaining fields the API did not send.
func TestWeatherSnapshot_KeepsShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"wind direction only", `{"cod":200,"wind":{"deg":5}}`},
		{"wind speed only", `{"cod":200,"wind":{"speed":3.1}}`},
		{"main temp only", `{"cod":200,"main":{"temp":18}}`},
		{"conditions", `{"cod":200,"name":"Paris","weather":[{"main":"Clouds","description":"broken clouds"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w WeatherSnapshot
			if err := json.Unmarshal([]byte(tt.raw), &w); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			got, err := json.Marshal(w)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.raw {
				t.Errorf("re-encoded = %s, want %s", got, tt.raw)
			}
		})
	}
}

// TestFavoriteCity_ForecastNilAndEmpty verifies that a pending (empty) forecast survives
// encoding while a never-requested (nil) one is left out.
func TestFavoriteCity_ForecastNilAndEmpty(t *testing.T) {
	favs := []FavoriteCity{
		{CityRecord: CityRecord{Name: "Lima"}, HourlyForecast: []HourlyPoint{}, IsSelected: true},
		{CityRecord: CityRecord{Name: "Oslo"}},
	}
	data, err := json.Marshal(favs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"name":"Lima","weather":null,"hourlyForecast":[],"isSelected":true},{"name":"Oslo","weather":null}]`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var got []FavoriteCity
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(favs, got); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
	if got[0].HourlyForecast == nil {
		t.Error("pending hourly forecast decoded as nil, want empty")
	}
}

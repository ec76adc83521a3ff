package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kjstillabower/weather-favorites/internal/client"
	"github.com/kjstillabower/weather-favorites/internal/favorites"
	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/storage"
)

type fakeWeatherClient struct {
	weather    models.WeatherSnapshot
	weatherErr error
	forecast   []client.ForecastSample
	daily      []client.DailySample
	dailyErr   error

	// gate, when set, blocks CurrentWeather until closed. entered receives once per call.
	gate    chan struct{}
	entered chan struct{}

	weatherCalls atomic.Int32
	mu           sync.Mutex
	dailyCoords  []models.Coordinates
}

func (f *fakeWeatherClient) CurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	f.weatherCalls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.weather, f.weatherErr
}

func (f *fakeWeatherClient) Forecast(ctx context.Context, city string) ([]client.ForecastSample, error) {
	return f.forecast, nil
}

func (f *fakeWeatherClient) DailyForecast(ctx context.Context, coord models.Coordinates) ([]client.DailySample, error) {
	f.mu.Lock()
	f.dailyCoords = append(f.dailyCoords, coord)
	f.mu.Unlock()
	return f.daily, f.dailyErr
}

func newTestEnricher(t *testing.T, wc client.WeatherClient, names ...string) (*Enricher, *favorites.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := favorites.Open(ctx, storage.NewInMemoryStore(), favorites.DefaultKey, nil)
	if err != nil {
		t.Fatalf("favorites.Open() error = %v", err)
	}
	for _, n := range names {
		if _, err := store.Toggle(ctx, models.CityRecord{Name: n}); err != nil {
			t.Fatalf("Toggle() error = %v", err)
		}
	}
	e := New(ctx, wc, store, nil, Options{Location: time.UTC})
	return e, store
}

func TestFetchWeather_Merges(t *testing.T) {
	wc := &fakeWeatherClient{weather: models.WeatherSnapshot{Cod: 200, Main: &models.WeatherMain{Temp: 18}}}
	e, store := newTestEnricher(t, wc, "Paris")

	if err := e.FetchWeather(context.Background(), models.CityRecord{Name: "Paris"}); err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}
	fav, _ := store.Get("Paris")
	if diff := cmp.Diff(&wc.weather, fav.Weather); diff != "" {
		t.Errorf("weather mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchWeather_FailureLeavesStoreUntouched(t *testing.T) {
	wc := &fakeWeatherClient{weatherErr: client.ErrAPIStatus}
	e, store := newTestEnricher(t, wc, "Paris")
	before := store.Snapshot()

	err := e.FetchWeather(context.Background(), models.CityRecord{Name: "Paris"})
	if !errors.Is(err, client.ErrAPIStatus) {
		t.Fatalf("FetchWeather() error = %v, want ErrAPIStatus", err)
	}
	if diff := cmp.Diff(before, store.Snapshot()); diff != "" {
		t.Errorf("store changed (-before +after):\n%s", diff)
	}
}

func TestFetchWeather_AbsentCityIsNoop(t *testing.T) {
	wc := &fakeWeatherClient{weather: models.WeatherSnapshot{Cod: 200}}
	e, store := newTestEnricher(t, wc, "Paris")

	if err := e.FetchWeather(context.Background(), models.CityRecord{Name: "Rome"}); err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}
	if _, ok := store.Get("Rome"); ok {
		t.Error("enrichment created a favorite for an absent city")
	}
}

func TestFetch_EmptyNameIgnored(t *testing.T) {
	wc := &fakeWeatherClient{}
	e, _ := newTestEnricher(t, wc)
	ctx := context.Background()

	for name, fetch := range map[string]func(context.Context, models.CityRecord) error{
		"weather": e.FetchWeather,
		"hourly":  e.FetchHourly,
		"weekly":  e.FetchWeekly,
	} {
		if err := fetch(ctx, models.CityRecord{}); err != nil {
			t.Errorf("%s: error = %v, want nil", name, err)
		}
	}
	if got := wc.weatherCalls.Load(); got != 0 {
		t.Errorf("weather calls = %d, want 0", got)
	}
	if len(wc.dailyCoords) != 0 {
		t.Errorf("daily calls = %d, want 0", len(wc.dailyCoords))
	}
}

// TestFetchHourly_FirstEightSamples covers the forecast scenario: ten samples arrive and
// the first eight become hourly points with local time and temperature.
func TestFetchHourly_FirstEightSamples(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var samples []client.ForecastSample
	for i := 0; i < 10; i++ {
		samples = append(samples, client.ForecastSample{Time: base.Add(time.Duration(i*3) * time.Hour), Temp: float64(10 + i)})
	}
	wc := &fakeWeatherClient{forecast: samples}
	e, store := newTestEnricher(t, wc, "Paris")

	if err := e.FetchHourly(context.Background(), models.CityRecord{Name: "Paris"}); err != nil {
		t.Fatalf("FetchHourly() error = %v", err)
	}
	want := []models.HourlyPoint{
		{Time: "00:00", Temperature: 10},
		{Time: "03:00", Temperature: 11},
		{Time: "06:00", Temperature: 12},
		{Time: "09:00", Temperature: 13},
		{Time: "12:00", Temperature: 14},
		{Time: "15:00", Temperature: 15},
		{Time: "18:00", Temperature: 16},
		{Time: "21:00", Temperature: 17},
	}
	fav, _ := store.Get("Paris")
	if diff := cmp.Diff(want, fav.HourlyForecast); diff != "" {
		t.Errorf("hourly mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchHourly_UsesLocation(t *testing.T) {
	wc := &fakeWeatherClient{forecast: []client.ForecastSample{
		{Time: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), Temp: 20},
	}}
	ctx := context.Background()
	store, _ := favorites.Open(ctx, storage.NewInMemoryStore(), "", nil)
	_, _ = store.Toggle(ctx, models.CityRecord{Name: "Tokyo"})
	e := New(ctx, wc, store, nil, Options{Location: time.FixedZone("JST", 9*3600), TimeLayout: "15:04 MST"})

	if err := e.FetchHourly(ctx, models.CityRecord{Name: "Tokyo"}); err != nil {
		t.Fatalf("FetchHourly() error = %v", err)
	}
	fav, _ := store.Get("Tokyo")
	if len(fav.HourlyForecast) != 1 || fav.HourlyForecast[0].Time != "21:00 JST" {
		t.Errorf("hourly = %+v, want 21:00 JST", fav.HourlyForecast)
	}
}

func TestFetchWeekly_FirstSevenDays(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var samples []client.DailySample
	for i := 0; i < 8; i++ {
		samples = append(samples, client.DailySample{Time: base.AddDate(0, 0, i), TempMin: float64(i), TempMax: float64(i + 10)})
	}
	wc := &fakeWeatherClient{daily: samples}
	e, store := newTestEnricher(t, wc, "Paris")

	city := models.CityRecord{Name: "Paris", Coord: &models.Coordinates{Lat: 48.85, Lon: 2.35}}
	if err := e.FetchWeekly(context.Background(), city); err != nil {
		t.Fatalf("FetchWeekly() error = %v", err)
	}
	fav, _ := store.Get("Paris")
	if len(fav.WeeklyForecast) != 7 {
		t.Fatalf("weekly points = %d, want 7", len(fav.WeeklyForecast))
	}
	if diff := cmp.Diff(models.DailyPoint{Date: "Sat 2024-06-01", TempMin: 0, TempMax: 10}, fav.WeeklyForecast[0]); diff != "" {
		t.Errorf("first day mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Coordinates{{Lat: 48.85, Lon: 2.35}}, wc.dailyCoords); diff != "" {
		t.Errorf("coordinates mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchWeekly_FallsBackToWeatherCoordinates(t *testing.T) {
	wc := &fakeWeatherClient{daily: []client.DailySample{{Time: time.Now(), TempMin: 1, TempMax: 2}}}
	e, store := newTestEnricher(t, wc, "Paris")
	ctx := context.Background()
	_, _ = store.MergeWeather(ctx, "Paris", models.WeatherSnapshot{Cod: 200, Coord: &models.Coordinates{Lat: 1.5, Lon: 2.5}})

	if err := e.FetchWeekly(ctx, models.CityRecord{Name: "Paris"}); err != nil {
		t.Fatalf("FetchWeekly() error = %v", err)
	}
	if diff := cmp.Diff([]models.Coordinates{{Lat: 1.5, Lon: 2.5}}, wc.dailyCoords); diff != "" {
		t.Errorf("coordinates mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchWeekly_NoCoordinates(t *testing.T) {
	wc := &fakeWeatherClient{}
	e, store := newTestEnricher(t, wc, "Paris")

	err := e.FetchWeekly(context.Background(), models.CityRecord{Name: "Paris"})
	if !errors.Is(err, ErrNoCoordinates) {
		t.Fatalf("FetchWeekly() error = %v, want ErrNoCoordinates", err)
	}
	if len(wc.dailyCoords) != 0 {
		t.Error("daily forecast requested without coordinates")
	}
	if fav, _ := store.Get("Paris"); fav.WeeklyForecast != nil {
		t.Errorf("weekly = %+v, want nil", fav.WeeklyForecast)
	}
}

func TestFetchWeather_CoalescesConcurrentCalls(t *testing.T) {
	wc := &fakeWeatherClient{
		weather: models.WeatherSnapshot{Cod: 200},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	e, _ := newTestEnricher(t, wc, "Paris")
	ctx := context.Background()
	city := models.CityRecord{Name: "Paris"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = e.FetchWeather(ctx, city)
	}()
	<-wc.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = e.FetchWeather(ctx, city)
	}()
	time.Sleep(50 * time.Millisecond)
	close(wc.gate)
	wg.Wait()

	if got := wc.weatherCalls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestTriggerWeather_WaitSeesMerge(t *testing.T) {
	wc := &fakeWeatherClient{weather: models.WeatherSnapshot{Cod: 200, Name: "Paris"}}
	e, store := newTestEnricher(t, wc)
	store.SetEnricher(e)
	ctx := context.Background()

	if _, err := store.Toggle(ctx, models.CityRecord{Name: "Paris"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := e.Wait(waitCtx, time.Millisecond); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	fav, _ := store.Get("Paris")
	if fav.Weather == nil || fav.Weather.Name != "Paris" {
		t.Errorf("weather = %+v, want merged snapshot", fav.Weather)
	}
}

func TestTriggerHourly_OnSelect(t *testing.T) {
	wc := &fakeWeatherClient{
		weather:  models.WeatherSnapshot{Cod: 200},
		forecast: []client.ForecastSample{{Time: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), Temp: -3}},
	}
	e, store := newTestEnricher(t, wc, "Oslo")
	store.SetEnricher(e)
	ctx := context.Background()

	if err := store.Select(ctx, models.CityRecord{Name: "Oslo"}); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := e.Wait(waitCtx, time.Millisecond); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	fav, _ := store.Get("Oslo")
	if diff := cmp.Diff([]models.HourlyPoint{{Time: "06:00", Temperature: -3}}, fav.HourlyForecast); diff != "" {
		t.Errorf("hourly mismatch (-want +got):\n%s", diff)
	}
}

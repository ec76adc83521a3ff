// Package enrich fetches weather data for favorites and merges it back into the store.
// Every failure is soft: it is logged and counted, and the store is left untouched.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-favorites/internal/client"
	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/observability"
)

// Kind names one enrichment type. It is used in metric labels and log fields.
type Kind string

const (
	KindWeather Kind = "weather"
	KindHourly  Kind = "hourly"
	KindWeekly  Kind = "weekly"
)

const (
	hourlyPoints = client.ForecastSamples
	dailyPoints  = client.DailySamples

	DefaultTimeLayout = "15:04"
	DefaultDateLayout = "Mon 2006-01-02"
)

// ErrNoCoordinates is returned by FetchWeekly when neither the city nor its weather
// snapshot carries coordinates.
var ErrNoCoordinates = errors.New("city has no coordinates")

// FavoritesStore is the part of the favorites store enrichment writes to.
type FavoritesStore interface {
	Get(name string) (models.FavoriteCity, bool)
	MergeWeather(ctx context.Context, name string, w models.WeatherSnapshot) (bool, error)
	MergeHourly(ctx context.Context, name string, points []models.HourlyPoint) (bool, error)
	MergeWeekly(ctx context.Context, name string, points []models.DailyPoint) (bool, error)
}

// Options controls how forecast timestamps are rendered.
type Options struct {
	// Location for rendering timestamps. Defaults to time.Local.
	Location *time.Location
	// TimeLayout formats hourly points. Defaults to DefaultTimeLayout.
	TimeLayout string
	// DateLayout formats daily points. Defaults to DefaultDateLayout.
	DateLayout string
}

// Enricher runs weather, hourly and weekly fetches for favorites. Triggered fetches run on
// goroutines bound to the context passed to New, not to the caller's context.
type Enricher struct {
	weather client.WeatherClient
	store   FavoritesStore
	logger  *zap.Logger

	ctx        context.Context
	loc        *time.Location
	timeLayout string
	dateLayout string

	group    singleflight.Group
	inflight InFlightTracker
}

// New creates an Enricher. ctx bounds every triggered fetch; cancel it on shutdown.
func New(ctx context.Context, weather client.WeatherClient, store FavoritesStore, logger *zap.Logger, opts Options) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = DefaultTimeLayout
	}
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	return &Enricher{
		weather:    weather,
		store:      store,
		logger:     logger,
		ctx:        ctx,
		loc:        opts.Location,
		timeLayout: opts.TimeLayout,
		dateLayout: opts.DateLayout,
	}
}

// FetchWeather fetches current weather for city and merges it into the favorite of the same name.
func (e *Enricher) FetchWeather(ctx context.Context, city models.CityRecord) error {
	return e.run(ctx, KindWeather, city, func(ctx context.Context) (mergeFunc, error) {
		w, err := e.weather.CurrentWeather(ctx, city.Name)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (bool, error) {
			return e.store.MergeWeather(ctx, city.Name, w)
		}, nil
	})
}

// FetchHourly fetches the 3-hourly forecast and merges its first eight samples as the
// favorite's hourly forecast.
func (e *Enricher) FetchHourly(ctx context.Context, city models.CityRecord) error {
	return e.run(ctx, KindHourly, city, func(ctx context.Context) (mergeFunc, error) {
		samples, err := e.weather.Forecast(ctx, city.Name)
		if err != nil {
			return nil, err
		}
		points := e.hourlyPoints(samples)
		return func(ctx context.Context) (bool, error) {
			return e.store.MergeHourly(ctx, city.Name, points)
		}, nil
	})
}

// FetchWeekly fetches the daily forecast for the city's coordinates and merges its first
// seven days as the favorite's weekly forecast.
func (e *Enricher) FetchWeekly(ctx context.Context, city models.CityRecord) error {
	return e.run(ctx, KindWeekly, city, func(ctx context.Context) (mergeFunc, error) {
		coord, ok := e.coordinates(city)
		if !ok {
			return nil, ErrNoCoordinates
		}
		samples, err := e.weather.DailyForecast(ctx, coord)
		if err != nil {
			return nil, err
		}
		points := e.dailyPoints(samples)
		return func(ctx context.Context) (bool, error) {
			return e.store.MergeWeekly(ctx, city.Name, points)
		}, nil
	})
}

// TriggerWeather runs FetchWeather in the background.
func (e *Enricher) TriggerWeather(city models.CityRecord) {
	e.trigger(city, e.FetchWeather)
}

// TriggerHourly runs FetchHourly in the background.
func (e *Enricher) TriggerHourly(city models.CityRecord) {
	e.trigger(city, e.FetchHourly)
}

// TriggerWeekly runs FetchWeekly in the background.
func (e *Enricher) TriggerWeekly(city models.CityRecord) {
	e.trigger(city, e.FetchWeekly)
}

// Wait blocks until every triggered fetch has finished or ctx is done.
func (e *Enricher) Wait(ctx context.Context, interval time.Duration) error {
	return e.inflight.WaitForZero(ctx, interval)
}

func (e *Enricher) trigger(city models.CityRecord, fetch func(context.Context, models.CityRecord) error) {
	e.inflight.Increment()
	go func() {
		defer e.inflight.Decrement()
		// Errors are already logged and counted by run.
		_ = fetch(e.ctx, city)
	}()
}

// mergeFunc applies a fetched result to the store and reports whether a favorite matched.
type mergeFunc func(ctx context.Context) (bool, error)

// run executes one fetch-and-merge. Concurrent runs of the same kind for the same city
// share a single upstream call.
func (e *Enricher) run(ctx context.Context, kind Kind, city models.CityRecord, fetch func(context.Context) (mergeFunc, error)) error {
	if city.Name == "" {
		return nil
	}

	ran := false
	_, err, _ := e.group.Do(string(kind)+":"+city.Name, func() (any, error) {
		ran = true
		return nil, e.fetchAndMerge(ctx, kind, city, fetch)
	})
	if !ran {
		observability.EnrichmentCoalescedTotal.WithLabelValues(string(kind)).Inc()
	}
	return err
}

func (e *Enricher) fetchAndMerge(ctx context.Context, kind Kind, city models.CityRecord, fetch func(context.Context) (mergeFunc, error)) error {
	logger := e.logger.With(
		zap.String("op_id", uuid.NewString()),
		zap.String("kind", string(kind)),
		zap.String("city", city.Name),
	)
	observability.EnrichmentsInFlight.Inc()
	defer observability.EnrichmentsInFlight.Dec()
	start := time.Now()

	merge, err := fetch(ctx)
	if err != nil {
		category := client.CategorizeError(err)
		if errors.Is(err, ErrNoCoordinates) {
			category = "no_coordinates"
		}
		observability.UpstreamErrorsTotal.WithLabelValues(apiFor(kind), string(category)).Inc()
		observability.EnrichmentsTotal.WithLabelValues(string(kind), "failed").Inc()
		logger.Warn("enrichment fetch failed",
			zap.String("error_category", string(category)),
			zap.Error(err),
		)
		return fmt.Errorf("fetch %s for %s: %w", kind, city.Name, err)
	}

	matched, err := merge(ctx)
	if err != nil {
		observability.EnrichmentsTotal.WithLabelValues(string(kind), "failed").Inc()
		logger.Error("enrichment merge failed", zap.Error(err))
		return fmt.Errorf("merge %s for %s: %w", kind, city.Name, err)
	}
	if !matched {
		observability.EnrichmentsTotal.WithLabelValues(string(kind), "dropped").Inc()
		logger.Debug("favorite gone before enrichment completed")
		return nil
	}

	observability.EnrichmentsTotal.WithLabelValues(string(kind), "merged").Inc()
	logger.Debug("enrichment merged", zap.Duration("duration", time.Since(start)))
	return nil
}

// coordinates resolves coordinates from the record, then the stored favorite, then the
// stored favorite's weather snapshot.
func (e *Enricher) coordinates(city models.CityRecord) (models.Coordinates, bool) {
	if city.Coord != nil {
		return *city.Coord, true
	}
	fav, ok := e.store.Get(city.Name)
	if !ok {
		return models.Coordinates{}, false
	}
	if fav.Coord != nil {
		return *fav.Coord, true
	}
	if fav.Weather != nil && fav.Weather.Coord != nil {
		return *fav.Weather.Coord, true
	}
	return models.Coordinates{}, false
}

func (e *Enricher) hourlyPoints(samples []client.ForecastSample) []models.HourlyPoint {
	n := min(len(samples), hourlyPoints)
	points := make([]models.HourlyPoint, 0, n)
	for _, s := range samples[:n] {
		points = append(points, models.HourlyPoint{
			Time:        s.Time.In(e.loc).Format(e.timeLayout),
			Temperature: s.Temp,
		})
	}
	return points
}

func (e *Enricher) dailyPoints(samples []client.DailySample) []models.DailyPoint {
	n := min(len(samples), dailyPoints)
	points := make([]models.DailyPoint, 0, n)
	for _, s := range samples[:n] {
		points = append(points, models.DailyPoint{
			Date:    s.Time.In(e.loc).Format(e.dateLayout),
			TempMin: s.TempMin,
			TempMax: s.TempMax,
		})
	}
	return points
}

func apiFor(kind Kind) string {
	switch kind {
	case KindHourly:
		return client.APIForecast
	case KindWeekly:
		return client.APIOneCall
	default:
		return client.APIWeather
	}
}

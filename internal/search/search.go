// Package search looks up cities by name and attaches current weather to each match.
// Results are transient and never touch the favorites store.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/weather-favorites/internal/client"
	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/observability"
	"github.com/kjstillabower/weather-favorites/internal/validation"
)

// DefaultParallel bounds concurrent weather lookups per search.
const DefaultParallel = 8

// Result is one city match with its current weather.
type Result struct {
	City    models.CityRecord
	Weather models.WeatherSnapshot
}

type Searcher struct {
	cities   client.CityClient
	weather  client.WeatherClient
	logger   *zap.Logger
	parallel int
}

// New creates a Searcher. parallel <= 0 uses DefaultParallel.
func New(cities client.CityClient, weather client.WeatherClient, logger *zap.Logger, parallel int) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	return &Searcher{cities: cities, weather: weather, logger: logger, parallel: parallel}
}

// Search returns the cities matching query together with their current weather, in the
// order the lookup API returned them. A whitespace-only query yields no results and no
// request. Cities whose weather lookup fails are logged and left out.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q, err := validation.ValidateQuery(query, validation.DefaultQueryMinLen, validation.DefaultQueryMaxLen)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	observability.SearchQueriesTotal.Inc()
	cities, err := s.cities.SearchCities(ctx, q)
	if err != nil {
		category := client.CategorizeError(err)
		observability.UpstreamErrorsTotal.WithLabelValues(client.APICity, string(category)).Inc()
		s.logger.Warn("city lookup failed",
			zap.String("query", q),
			zap.String("error_category", string(category)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	slots := make([]*Result, len(cities))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, city := range cities {
		if city.Name == "" {
			continue
		}
		g.Go(func() error {
			w, err := s.weather.CurrentWeather(gCtx, city.Name)
			if err != nil {
				category := client.CategorizeError(err)
				observability.UpstreamErrorsTotal.WithLabelValues(client.APIWeather, string(category)).Inc()
				s.logger.Warn("weather lookup failed",
					zap.String("city", city.Name),
					zap.String("error_category", string(category)),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = &Result{City: city, Weather: w}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	s.logger.Debug("search complete",
		zap.String("query", q),
		zap.Int("cities", len(cities)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

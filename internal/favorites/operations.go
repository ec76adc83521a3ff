package favorites

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/models"
)

// Toggle removes the favorite named city.Name if present, otherwise appends city with no
// weather and starts weather enrichment for it. added reports which happened.
func (s *Store) Toggle(ctx context.Context, city models.CityRecord) (added bool, err error) {
	_, err = s.update(ctx, func(cur []models.FavoriteCity) ([]models.FavoriteCity, bool) {
		if i := indexOf(cur, city.Name); i >= 0 {
			return append(cur[:i], cur[i+1:]...), true
		}
		added = true
		fav := models.FavoriteCity{CityRecord: city}
		if city.Coord != nil {
			c := *city.Coord
			fav.Coord = &c
		}
		return append(cur, fav), true
	})

	if added {
		s.logger.Info("favorite added", zap.String("city", city.Name))
		if e := s.currentEnricher(); e != nil {
			e.TriggerWeather(city)
		}
	} else {
		s.logger.Info("favorite removed", zap.String("city", city.Name))
	}
	return added, err
}

// Remove drops the favorite named city.Name. The sequence is persisted even when nothing matched.
func (s *Store) Remove(ctx context.Context, city models.CityRecord) error {
	return s.Update(ctx, func(cur []models.FavoriteCity) []models.FavoriteCity {
		out := cur[:0]
		for _, f := range cur {
			if f.Name != city.Name {
				out = append(out, f)
			}
		}
		return out
	})
}

// IsFavorite reports whether a favorite with city's name exists.
func (s *Store) IsFavorite(city models.CityRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.favorites, city.Name) >= 0
}

// Select marks the favorite named city.Name as the only selected one; every other favorite
// is deselected. A selected favorite without an hourly forecast gets an empty one and
// hourly enrichment is started. Selecting an unknown name deselects everything.
func (s *Store) Select(ctx context.Context, city models.CityRecord) error {
	var fetch *models.CityRecord
	_, err := s.update(ctx, func(cur []models.FavoriteCity) ([]models.FavoriteCity, bool) {
		for i := range cur {
			if cur[i].Name != city.Name {
				cur[i].IsSelected = false
				continue
			}
			cur[i].IsSelected = true
			if len(cur[i].HourlyForecast) == 0 {
				if cur[i].HourlyForecast == nil {
					cur[i].HourlyForecast = []models.HourlyPoint{}
				}
				rec := cur[i].CityRecord
				fetch = &rec
			}
		}
		return cur, true
	})

	s.logger.Debug("favorite selected", zap.String("city", city.Name), zap.Bool("fetch_hourly", fetch != nil))
	if fetch != nil {
		if e := s.currentEnricher(); e != nil {
			e.TriggerHourly(*fetch)
		}
	}
	return err
}

// Selected returns the selected favorite, if any.
func (s *Store) Selected() (models.FavoriteCity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.favorites {
		if f.IsSelected {
			return f.Clone(), true
		}
	}
	return models.FavoriteCity{}, false
}

// MergeWeather sets the weather of the favorite named name. It reports false, without
// persisting, when no such favorite exists.
func (s *Store) MergeWeather(ctx context.Context, name string, w models.WeatherSnapshot) (bool, error) {
	return s.mergeField(ctx, name, func(f *models.FavoriteCity) {
		f.Weather = &w
	})
}

// MergeHourly sets the hourly forecast of the favorite named name.
func (s *Store) MergeHourly(ctx context.Context, name string, points []models.HourlyPoint) (bool, error) {
	return s.mergeField(ctx, name, func(f *models.FavoriteCity) {
		f.HourlyForecast = points
	})
}

// MergeWeekly sets the weekly forecast of the favorite named name.
func (s *Store) MergeWeekly(ctx context.Context, name string, points []models.DailyPoint) (bool, error) {
	return s.mergeField(ctx, name, func(f *models.FavoriteCity) {
		f.WeeklyForecast = points
	})
}

func (s *Store) mergeField(ctx context.Context, name string, set func(*models.FavoriteCity)) (bool, error) {
	return s.update(ctx, func(cur []models.FavoriteCity) ([]models.FavoriteCity, bool) {
		i := indexOf(cur, name)
		if i < 0 {
			return cur, false
		}
		set(&cur[i])
		cur[i] = cur[i].Clone()
		return cur, true
	})
}

// PendingWeather returns the favorites that have no weather yet, in display order.
func (s *Store) PendingWeather() []models.CityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CityRecord
	for _, f := range s.favorites {
		if f.Weather == nil && f.Name != "" {
			out = append(out, f.Clone().CityRecord)
		}
	}
	return out
}

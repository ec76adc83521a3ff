package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/observability"
)

// WeatherFetcher fetches and merges current weather for one favorite. *Enricher implements it.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, city models.CityRecord) error
}

// Backfiller fetches current weather for many favorites at once: the ones loaded from
// storage without weather, or every favorite on a periodic refresh.
type Backfiller struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewBackfiller creates a Backfiller that uses the given fetcher and logger.
func NewBackfiller(fetcher WeatherFetcher, logger *zap.Logger) *Backfiller {
	return &Backfiller{fetcher: fetcher, logger: logger}
}

// Backfill fetches weather for each city concurrently. Returns an aggregated error if any
// city failed; successful cities are merged regardless.
func (b *Backfiller) Backfill(ctx context.Context, cities []models.CityRecord) error {
	if len(cities) == 0 {
		return nil
	}
	start := time.Now()
	observability.BackfillTotal.Inc()
	if b.logger != nil {
		b.logger.Info("backfilling weather", zap.Int("cities", len(cities)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.fetcher.FetchWeather(ctx, city); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.BackfillDurationSeconds.Observe(duration)
	if b.logger != nil {
		b.logger.Info("weather backfill complete", zap.Int("cities", len(cities)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.BackfillErrorsTotal.Inc()
		return fmt.Errorf("weather backfill: %w", errors.Join(errs...))
	}
	return nil
}

// RefreshPeriodic runs an initial Backfill over source(), then repeats at the given interval
// until ctx is done. source is re-read on every tick so added and removed favorites are picked up.
func (b *Backfiller) RefreshPeriodic(ctx context.Context, source func() []models.CityRecord, interval time.Duration) error {
	if err := b.Backfill(ctx, source()); err != nil && b.logger != nil {
		b.logger.Warn("initial weather refresh failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.Backfill(ctx, source()); err != nil && b.logger != nil {
				b.logger.Warn("periodic weather refresh failed", zap.Error(err))
			}
		}
	}
}

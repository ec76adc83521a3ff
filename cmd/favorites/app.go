package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/client"
	"github.com/kjstillabower/weather-favorites/internal/config"
	"github.com/kjstillabower/weather-favorites/internal/enrich"
	"github.com/kjstillabower/weather-favorites/internal/favorites"
	"github.com/kjstillabower/weather-favorites/internal/observability"
	"github.com/kjstillabower/weather-favorites/internal/search"
	"github.com/kjstillabower/weather-favorites/internal/storage"
)

const waitCheckInterval = 50 * time.Millisecond

// app is the wired object graph shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	kv         storage.Store
	store      *favorites.Store
	enricher   *enrich.Enricher
	backfiller *enrich.Backfiller

	// searcher is nil when no city API key is configured; searchErr says why.
	searcher  *search.Searcher
	searchErr error

	cancel context.CancelFunc
}

// openApp loads configuration and builds the app against the real APIs.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	weather, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	var cities client.CityClient
	cityClient, cityErr := client.NewNinjasCityClient(cfg.CityAPIKey, cfg.CityAPIURL, cfg.CityAPITimeout)
	if cityErr != nil {
		logger.Debug("city search disabled", zap.Error(cityErr))
	} else {
		cities = cityClient
	}

	a, err := newApp(ctx, cfg, logger, weather, cities)
	if err != nil {
		return nil, err
	}
	if cityErr != nil {
		a.searchErr = fmt.Errorf("city search unavailable: %w", cityErr)
	}
	return a, nil
}

// newApp wires storage, the favorites store, enrichment and search. cities may be nil.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, weather client.WeatherClient, cities client.CityClient) (*app, error) {
	kv, err := storage.Open(storage.Options{
		Backend:               cfg.StorageBackend,
		FileDir:               cfg.FileDir,
		SQLitePath:            cfg.SQLitePath,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	logger.Debug("storage backend", zap.String("backend", cfg.StorageBackend))

	store, err := favorites.Open(ctx, kv, cfg.StorageKey, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	enrichCtx, cancel := context.WithCancel(ctx)
	enricher := enrich.New(enrichCtx, weather, store, logger, enrich.Options{
		Location:   cfg.Location,
		TimeLayout: cfg.TimeLayout,
		DateLayout: cfg.DateLayout,
	})
	store.SetEnricher(enricher)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		kv:         kv,
		store:      store,
		enricher:   enricher,
		backfiller: enrich.NewBackfiller(enricher, logger),
		cancel:     cancel,
	}
	if cities != nil {
		a.searcher = search.New(cities, weather, logger, cfg.SearchParallel)
	} else {
		a.searchErr = fmt.Errorf("city search unavailable: CITY_API_KEY not set")
	}
	return a, nil
}

// backfillPending fetches weather for favorites that were stored without it.
func (a *app) backfillPending(ctx context.Context) {
	pending := a.store.PendingWeather()
	if len(pending) == 0 {
		return
	}
	if err := a.backfiller.Backfill(ctx, pending); err != nil {
		a.logger.Warn("weather backfill incomplete", zap.Error(err))
	}
}

// waitEnrichment blocks until triggered enrichments finish, bounded by the shutdown timeout.
func (a *app) waitEnrichment() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.enricher.Wait(ctx, waitCheckInterval); err != nil {
		a.logger.Warn("enrichment still in flight at exit", zap.Error(err))
	}
}

// shutdown drains enrichment, releases storage and flushes telemetry.
func (a *app) shutdown() {
	a.waitEnrichment()
	a.cancel()
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("close storage", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), a.logger, a.cfg.MetricsFile); err != nil {
		a.logger.Debug("flush telemetry", zap.Error(err))
	}
}

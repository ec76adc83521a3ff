//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/client"
	"github.com/kjstillabower/weather-favorites/internal/enrich"
	"github.com/kjstillabower/weather-favorites/internal/favorites"
	"github.com/kjstillabower/weather-favorites/internal/storage"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	StorageBackend string // any storage.Backend* value; empty means in_memory
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5"
	}

	backend := os.Getenv("INTEGRATION_STORAGE_BACKEND")
	if backend == "" {
		backend = storage.BackendInMemory
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         apiURL,
		StorageBackend: backend,
		MemcachedAddr:  memcachedAddr,
	}
}

// SetupIntegrationPipeline wires a favorites store to a live enricher. The store's key is
// unique per test so shared backends such as memcached do not leak state between runs.
// Storage is closed and enrichment cancelled on test cleanup.
func SetupIntegrationPipeline(t *testing.T, cfg IntegrationTestConfig) (*favorites.Store, *enrich.Enricher) {
	t.Helper()
	logger := zap.NewNop()

	kv, err := storage.Open(storage.Options{
		Backend:          cfg.StorageBackend,
		FileDir:          t.TempDir(),
		SQLitePath:       t.TempDir() + "/favorites.db",
		MemcachedAddrs:   cfg.MemcachedAddr,
		MemcachedTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("storage.Open(%s) error = %v", cfg.StorageBackend, err)
	}
	t.Logf("Using %s storage", cfg.StorageBackend)

	ctx, cancel := context.WithCancel(context.Background())
	store, err := favorites.Open(ctx, kv, "it-"+t.Name(), logger)
	if err != nil {
		cancel()
		_ = kv.Close()
		t.Skipf("favorites.Open() error = %v (backend may not be running)", err)
	}

	enricher := enrich.New(ctx, SetupIntegrationClient(t, cfg), store, logger, enrich.Options{Location: time.UTC})
	store.SetEnricher(enricher)

	t.Cleanup(func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer waitCancel()
		_ = enricher.Wait(waitCtx, 50*time.Millisecond)
		cancel()
		_ = kv.Remove(context.Background(), "it-"+t.Name())
		_ = kv.Close()
	})
	return store, enricher
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

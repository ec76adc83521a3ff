package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry *prometheus.Registry

	// Upstream call rate per API. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per API. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by error category (transport, decode, api_status, ...).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Enrichment outcomes. result is merged, dropped (favorite gone) or failed.
	EnrichmentsTotal *prometheus.CounterVec

	// Enrichment fetches currently running.
	EnrichmentsInFlight prometheus.Gauge

	// Enrichment requests that joined an in-flight fetch for the same city and kind.
	EnrichmentCoalescedTotal *prometheus.CounterVec

	// Favorites persistence writes. Watch for: result=error (backend unreachable).
	StorePersistsTotal *prometheus.CounterVec

	// Stored favorites discarded on load because they were corrupt.
	StoreResetsTotal *prometheus.CounterVec

	// Number of favorites after the last mutation.
	FavoritesCount prometheus.Gauge

	// City searches issued (empty queries excluded).
	SearchQueriesTotal prometheus.Counter

	// Weather backfill runs over stored favorites.
	BackfillTotal prometheus.Counter

	// Backfill runs with at least one failed city.
	BackfillErrorsTotal prometheus.Counter

	// Backfill wall time.
	BackfillDurationSeconds prometheus.Histogram
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of calls to external weather and city APIs",
		},
		[]string{"api", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "External API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "External API failures by error category",
		},
		[]string{"api", "category"},
	)
	EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentsTotal",
			Help: "Favorite enrichment outcomes by kind",
		},
		[]string{"kind", "result"},
	)
	EnrichmentsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "enrichmentsInFlight",
			Help: "Number of enrichment fetches currently running",
		},
	)
	EnrichmentCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentCoalescedTotal",
			Help: "Enrichment requests served by an in-flight fetch for the same city",
		},
		[]string{"kind"},
	)
	StorePersistsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storePersistsTotal",
			Help: "Favorites persistence writes by result",
		},
		[]string{"result"},
	)
	StoreResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeResetsTotal",
			Help: "Corrupt persisted favorites discarded on load",
		},
		[]string{"reason"},
	)
	FavoritesCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "favoritesCount",
			Help: "Number of stored favorites",
		},
	)
	SearchQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchQueriesTotal",
			Help: "Total number of city searches sent upstream",
		},
	)
	BackfillTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backfillTotal",
			Help: "Total number of weather backfill runs",
		},
	)
	BackfillErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backfillErrorsTotal",
			Help: "Backfill runs where at least one favorite failed",
		},
	)
	BackfillDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backfillDurationSeconds",
			Help:    "Weather backfill duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)

	registry.MustRegister(
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		EnrichmentsTotal, EnrichmentsInFlight, EnrichmentCoalescedTotal,
		StorePersistsTotal, StoreResetsTotal, FavoritesCount,
		SearchQueriesTotal,
		BackfillTotal, BackfillErrorsTotal, BackfillDurationSeconds,
	)
}

// Gatherer exposes the private registry.
func Gatherer() prometheus.Gatherer {
	return registry
}

// WriteTextfile writes all metrics in text exposition format to path, for pickup by
// node_exporter's textfile collector. The write is atomic (temp file + rename).
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

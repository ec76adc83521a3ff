package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies label dimensions match usage in client, enrich, favorites and search.
func TestMetrics_Usable(t *testing.T) {
	UpstreamCallsTotal.WithLabelValues("weather", "success").Inc()
	UpstreamDuration.WithLabelValues("forecast", "client_error").Observe(0.1)
	UpstreamErrorsTotal.WithLabelValues("onecall", "decode").Inc()
	EnrichmentsTotal.WithLabelValues("hourly", "merged").Inc()
	EnrichmentsInFlight.Inc()
	EnrichmentsInFlight.Dec()
	EnrichmentCoalescedTotal.WithLabelValues("weather").Inc()
	StorePersistsTotal.WithLabelValues("success").Inc()
	StoreResetsTotal.WithLabelValues("not_array").Inc()
	FavoritesCount.Set(2)
	SearchQueriesTotal.Inc()
	BackfillTotal.Inc()
	BackfillDurationSeconds.Observe(0.5)
}

func TestWriteTextfile(t *testing.T) {
	StorePersistsTotal.WithLabelValues("success").Inc()
	path := filepath.Join(t.TempDir(), "favorites.prom")

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "storePersistsTotal") {
		t.Error("textfile should contain storePersistsTotal")
	}
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "favorites.prom")
	if err := WriteTextfile(path); err == nil {
		t.Fatal("WriteTextfile() into missing directory error = nil, want error")
	}
}

func TestGatherer_IncludesEnrichmentMetrics(t *testing.T) {
	EnrichmentsTotal.WithLabelValues("weekly", "dropped").Inc()

	families, err := Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "enrichmentsTotal" {
			return
		}
	}
	t.Error("Gather() has no enrichmentsTotal family")
}

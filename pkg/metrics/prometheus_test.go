package metrics

import (
	"testing"

	"FinCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordForecast("generate", models.AlgorithmSMA)
	r.RecordForecast("generate", models.AlgorithmSMA)
	r.RecordRowsPersisted("forecast_results", 7)
	r.RecordCache("generate", true)
	r.RecordError("series_source")

	if got := testutil.ToFloat64(r.forecasts.WithLabelValues("generate", "SMA")); got != 2 {
		t.Errorf("forecasts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.rows.WithLabelValues("forecast_results")); got != 7 {
		t.Errorf("rows = %v, want 7", got)
	}
	if got := testutil.ToFloat64(r.cache.WithLabelValues("generate", "true")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("series_source")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestNewIsSingleton(t *testing.T) {
	if New() != New() {
		t.Fatalf("New returned distinct recorders")
	}
}

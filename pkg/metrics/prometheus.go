package metrics

import (
	"strconv"
	"sync"

	"FinCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts   *prometheus.CounterVec
	rows        *prometheus.CounterVec
	cache       *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the process-wide recorder registered with the default registry.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecasts_total",
				Help: "Forecast computations by operation and algorithm",
			},
			[]string{"operation", "algorithm"},
		),
		rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_rows_persisted_total",
				Help: "Rows written to storage",
			},
			[]string{"table"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_cache_requests_total",
				Help: "Result cache lookups by operation and outcome",
			},
			[]string{"operation", "hit"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts one computed forecast.
func (r *Recorder) RecordForecast(op string, algorithm models.Algorithm) {
	r.forecasts.WithLabelValues(op, string(algorithm)).Inc()
}

// RecordRowsPersisted counts rows written to a table.
func (r *Recorder) RecordRowsPersisted(table string, n int) {
	r.rows.WithLabelValues(table).Add(float64(n))
}

// RecordCache counts a cache lookup.
func (r *Recorder) RecordCache(op string, hit bool) {
	r.cache.WithLabelValues(op, strconv.FormatBool(hit)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordForecast(string, models.Algorithm) {}
func (Noop) RecordRowsPersisted(string, int)         {}
func (Noop) RecordCache(string, bool)                {}
func (Noop) RecordError(string)                      {}
func (Noop) RecordLatency(string, float64)           {}

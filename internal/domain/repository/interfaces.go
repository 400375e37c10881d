package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// SeriesSource returns ascending daily totals for a user, omitting days without activity.
type SeriesSource interface {
	DailyTotals(ctx context.Context, userID int64, from, to time.Time, filter models.SeriesFilter) ([]models.DailyTotal, error)
}

// UserDirectory resolves user identities. Missing users yield models.ErrNotFound.
type UserDirectory interface {
	FindUser(ctx context.Context, userID int64) (models.User, error)
}

// ConfigStore persists forecast configs. Stored configs are never updated.
type ConfigStore interface {
	Save(ctx context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error)
	Find(ctx context.Context, id int64) (models.ForecastConfig, error)
	GetOrCreate(ctx context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error)
	ListByUser(ctx context.Context, userID int64) ([]models.ForecastConfig, error)
}

// ResultStore appends forecast rows, preserving input order.
type ResultStore interface {
	SaveAll(ctx context.Context, results []models.ForecastResult) ([]models.ForecastResult, error)
}

// PerformanceStore records backtest accuracy.
type PerformanceStore interface {
	SavePerformance(ctx context.Context, p models.ForecastPerformance) error
}

// AnomalyStore records flagged days.
type AnomalyStore interface {
	SaveAnomalies(ctx context.Context, anomalies []models.ForecastAnomaly) ([]models.ForecastAnomaly, error)
}

// JobStore tracks queued forecast jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job models.ForecastJob) error
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error
	GetJob(ctx context.Context, id string) (models.ForecastJob, error)
}

// EventPublisher emits forecast events to downstream consumers.
type EventPublisher interface {
	PublishForecast(ctx context.Context, ev models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordForecast(op string, algorithm models.Algorithm)
	RecordRowsPersisted(table string, n int)
	RecordCache(op string, hit bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

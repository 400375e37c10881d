package service

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// Forecaster is the operation surface consumed by the API, queue and scheduler.
// Both the orchestrating use cases and the caching decorator implement it.
type Forecaster interface {
	Generate(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays int) ([]models.ForecastResult, error)
	BatchGenerate(ctx context.Context, userID int64, cfgs []models.ForecastConfig, start time.Time, horizonDays int) (*models.BatchResult, error)
	Backtest(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays, lookbackDays int) ([]models.ForecastResult, error)
}

// AnomalyScanner flags unusual days in a user's history.
type AnomalyScanner interface {
	ScanAnomalies(ctx context.Context, userID int64, from, to time.Time, thresholdSigma float64) ([]models.ForecastAnomaly, error)
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/forecast"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// minBacktestPoints is the smallest history a backtest will score.
const minBacktestPoints = 7

// Backtest holds out the last horizonDays points of the lookback+horizon window,
// forecasts them from the rest and scores the forecast by MAPE. The rows for
// [start, start+horizon) all carry that MAPE. Too little history yields an
// empty, unpersisted result.
func (o *ForecastOrchestrator) Backtest(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays, lookbackDays int) ([]models.ForecastResult, error) {
	t0 := time.Now()
	if err := checkHorizon(horizonDays); err != nil {
		return nil, err
	}
	if lookbackDays < 0 {
		return nil, fmt.Errorf("%w: lookback must be >= 0, got %d", models.ErrInvalidParameter, lookbackDays)
	}
	cfg, err := o.register(ctx, userID, cfg)
	if err != nil {
		return nil, err
	}

	start = util.DayStart(start)
	from, to := util.Window(start, lookbackDays+horizonDays)
	series, err := o.series.DailyTotals(ctx, userID, from, to, cfg.Filter())
	if err != nil {
		o.metrics.RecordError("series")
		return nil, fmt.Errorf("load history: %w", err)
	}
	values := models.Values(series)
	if len(values) < max(minBacktestPoints, horizonDays) {
		o.l.Debug("backtest skipped: short history",
			applogger.Int64("user_id", userID),
			applogger.Int64("config_id", cfg.ID),
			applogger.Int("points", len(values)),
		)
		return []models.ForecastResult{}, nil
	}

	split := max(1, len(values)-horizonDays)
	train, test := values[:split], values[split:]
	predicted, err := forecast.Project(train, cfg, horizonDays)
	if err != nil {
		o.metrics.RecordError("algorithm")
		return nil, err
	}
	mape := forecast.MAPE(test, predicted)

	saved, err := o.persist(ctx, buildRows(cfg, userID, start, horizonDays, predicted, &mape))
	if err != nil {
		return nil, err
	}
	perf := models.ForecastPerformance{
		ConfigID:     cfg.ID,
		UserID:       userID,
		MAPE:         mape,
		HorizonDays:  horizonDays,
		LookbackDays: lookbackDays,
	}
	if o.performance != nil {
		if err := o.performance.SavePerformance(ctx, perf); err != nil {
			o.metrics.RecordError("performance_store")
			return nil, fmt.Errorf("save performance: %w", err)
		}
		o.metrics.RecordRowsPersisted("forecast_performance", 1)
	}

	o.publish(ctx, "backtest", userID, cfg.ID, saved)
	o.metrics.RecordForecast("backtest", cfg.Algorithm)
	o.metrics.RecordLatency("backtest", time.Since(t0).Seconds())
	o.l.Info("backtest scored",
		applogger.Int64("user_id", userID),
		applogger.Int64("config_id", cfg.ID),
		applogger.String("algorithm", string(cfg.Algorithm)),
		applogger.Int("train", len(train)),
		applogger.Int("test", len(test)),
		applogger.Float64("mape", mape),
		applogger.Duration("duration_ms", time.Since(t0)),
	)
	return saved, nil
}

// Accuracy summarizes backtest rows. MAPE is nil when nothing was scored.
func Accuracy(cfg models.ForecastConfig, rows []models.ForecastResult, horizonDays, lookbackDays int) models.AccuracyMetrics {
	m := models.AccuracyMetrics{ConfigID: cfg.ID, HorizonDays: horizonDays, LookbackDays: lookbackDays}
	if len(rows) > 0 {
		m.ConfigID = rows[0].ConfigID
		m.MAPE = rows[0].MAPE
	}
	return m
}

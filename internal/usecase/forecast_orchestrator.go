package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/util"
)

var _ domsvc.Forecaster = (*ForecastOrchestrator)(nil)

// ForecastDeps are the collaborators of ForecastOrchestrator.
type ForecastDeps struct {
	Users       domrepo.UserDirectory
	Series      domrepo.SeriesSource
	Configs     domrepo.ConfigStore
	Results     domrepo.ResultStore
	Performance domrepo.PerformanceStore
	Publisher   domrepo.EventPublisher
	Metrics     domrepo.Metrics
	Logger      *applogger.Logger
}

// OrchestratorOption configures ForecastOrchestrator.
type OrchestratorOption func(*ForecastOrchestrator)

// WithLookbackDays sets the history window read by Generate.
func WithLookbackDays(days int) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if days > 0 {
			o.lookbackDays = days
		}
	}
}

// WithBatchConcurrency bounds concurrent Generate calls inside one batch.
func WithBatchConcurrency(n int) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if n > 0 {
			o.batchConcurrency = n
		}
	}
}

// ForecastOrchestrator loads history, runs the configured algorithm and
// persists one row per forecast day.
type ForecastOrchestrator struct {
	users            domrepo.UserDirectory
	series           domrepo.SeriesSource
	configs          domrepo.ConfigStore
	results          domrepo.ResultStore
	performance      domrepo.PerformanceStore
	publisher        domrepo.EventPublisher
	metrics          domrepo.Metrics
	l                *applogger.Logger
	lookbackDays     int
	batchConcurrency int
}

func NewForecastOrchestrator(deps ForecastDeps, opts ...OrchestratorOption) *ForecastOrchestrator {
	o := &ForecastOrchestrator{
		users:            deps.Users,
		series:           deps.Series,
		configs:          deps.Configs,
		results:          deps.Results,
		performance:      deps.Performance,
		publisher:        deps.Publisher,
		metrics:          deps.Metrics,
		l:                deps.Logger,
		lookbackDays:     180,
		batchConcurrency: 8,
	}
	if o.metrics == nil {
		o.metrics = metrics.Noop{}
	}
	if o.l == nil {
		o.l = applogger.Nop()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate forecasts horizonDays days from start using the lookback window
// that ends the day before start. Empty history yields an empty, unpersisted result.
func (o *ForecastOrchestrator) Generate(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays int) ([]models.ForecastResult, error) {
	_, rows, err := o.generate(ctx, userID, cfg, start, horizonDays)
	return rows, err
}

func (o *ForecastOrchestrator) generate(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays int) (models.ForecastConfig, []models.ForecastResult, error) {
	t0 := time.Now()
	if err := checkHorizon(horizonDays); err != nil {
		return cfg, nil, err
	}
	cfg, err := o.register(ctx, userID, cfg)
	if err != nil {
		return cfg, nil, err
	}

	start = util.DayStart(start)
	from, to := util.Window(start, o.lookbackDays)
	series, err := o.series.DailyTotals(ctx, userID, from, to, cfg.Filter())
	if err != nil {
		o.metrics.RecordError("series")
		return cfg, nil, fmt.Errorf("load history: %w", err)
	}
	if len(series) == 0 {
		o.l.Debug("forecast skipped: no history",
			applogger.Int64("user_id", userID),
			applogger.Int64("config_id", cfg.ID),
			applogger.Date("from", from),
			applogger.Date("to", to),
		)
		return cfg, []models.ForecastResult{}, nil
	}

	projected, err := forecast.Project(models.Values(series), cfg, horizonDays)
	if err != nil {
		o.metrics.RecordError("algorithm")
		return cfg, nil, err
	}

	saved, err := o.persist(ctx, buildRows(cfg, userID, start, horizonDays, projected, nil))
	if err != nil {
		return cfg, nil, err
	}
	o.publish(ctx, "generate", userID, cfg.ID, saved)
	o.metrics.RecordForecast("generate", cfg.Algorithm)
	o.metrics.RecordLatency("generate", time.Since(t0).Seconds())
	o.l.Info("forecast generated",
		applogger.Int64("user_id", userID),
		applogger.Int64("config_id", cfg.ID),
		applogger.String("algorithm", string(cfg.Algorithm)),
		applogger.Int("history", len(series)),
		applogger.Int("rows", len(saved)),
		applogger.Duration("duration_ms", time.Since(t0)),
	)
	return cfg, saved, nil
}

// register resolves the user and gives cfg a stored identity owned by userID.
func (o *ForecastOrchestrator) register(ctx context.Context, userID int64, cfg models.ForecastConfig) (models.ForecastConfig, error) {
	if _, err := o.users.FindUser(ctx, userID); err != nil {
		return cfg, err
	}
	if cfg.UserID == 0 {
		cfg.UserID = userID
	}
	if err := models.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	stored, err := o.configs.GetOrCreate(ctx, cfg)
	if err != nil {
		o.metrics.RecordError("config_store")
		return cfg, fmt.Errorf("register config: %w", err)
	}
	return stored, nil
}

func (o *ForecastOrchestrator) persist(ctx context.Context, rows []models.ForecastResult) ([]models.ForecastResult, error) {
	saved, err := o.results.SaveAll(ctx, rows)
	if err != nil {
		o.metrics.RecordError("result_store")
		return nil, fmt.Errorf("save results: %w", err)
	}
	o.metrics.RecordRowsPersisted("forecast_results", len(saved))
	return saved, nil
}

// publish emits a result event. Failures are logged and counted only.
func (o *ForecastOrchestrator) publish(ctx context.Context, kind string, userID, configID int64, rows []models.ForecastResult) {
	if o.publisher == nil || len(rows) == 0 {
		return
	}
	ev := models.ForecastEvent{Kind: kind, UserID: userID, ConfigID: configID, Results: rows, SentAt: time.Now().UTC()}
	if err := o.publisher.PublishForecast(ctx, ev); err != nil {
		o.metrics.RecordError("publish")
		o.l.Warn("forecast event publish failed",
			applogger.String("kind", kind),
			applogger.Int64("user_id", userID),
			applogger.Int64("config_id", configID),
			applogger.Error(err),
		)
	}
}

// buildRows creates one row per day in [start, start+horizon). Day i takes
// projected[min(i, len-1)].
func buildRows(cfg models.ForecastConfig, userID int64, start time.Time, horizon int, projected []float64, mape *float64) []models.ForecastResult {
	if len(projected) == 0 {
		return []models.ForecastResult{}
	}
	rows := make([]models.ForecastResult, horizon)
	for i := range rows {
		rows[i] = models.ForecastResult{
			ConfigID:      cfg.ID,
			UserID:        userID,
			TargetDate:    util.AddDays(start, i),
			ForecastValue: decimal.NewFromFloat(projected[min(i, len(projected)-1)]),
			MAPE:          mape,
		}
	}
	return rows
}

func checkHorizon(h int) error {
	if h < 1 {
		return fmt.Errorf("%w: horizon must be >= 1, got %d", models.ErrInvalidParameter, h)
	}
	return nil
}

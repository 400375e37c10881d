package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/util"
)

var _ domsvc.AnomalyScanner = (*AnomalyScan)(nil)

type AnomalyScan struct {
	users   domrepo.UserDirectory
	series  domrepo.SeriesSource
	store   domrepo.AnomalyStore
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAnomalyScan(users domrepo.UserDirectory, series domrepo.SeriesSource, store domrepo.AnomalyStore, m domrepo.Metrics, l *applogger.Logger) *AnomalyScan {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &AnomalyScan{users: users, series: series, store: store, metrics: m, l: l}
}

type scanParams struct {
	ThresholdSigma float64 `json:"threshold_sigma"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Points         int     `json:"points"`
	Mean           float64 `json:"mean"`
	Std            float64 `json:"std"`
}

// ScanAnomalies flags days in [from, to] whose total deviates from the window
// mean by more than thresholdSigma sample deviations and persists them.
func (s *AnomalyScan) ScanAnomalies(ctx context.Context, userID int64, from, to time.Time, thresholdSigma float64) ([]models.ForecastAnomaly, error) {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	from, to = util.DayStart(from), util.DayStart(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s before start %s", models.ErrInvalidParameter, dayKey(to), dayKey(from))
	}
	series, err := s.series.DailyTotals(ctx, userID, from, to, models.SeriesFilter{})
	if err != nil {
		s.metrics.RecordError("series")
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(series) == 0 {
		return []models.ForecastAnomaly{}, nil
	}

	values := models.Values(series)
	flagged := forecast.DetectAnomalies(values, thresholdSigma)
	if len(flagged) == 0 {
		return []models.ForecastAnomaly{}, nil
	}
	scores := forecast.ZScores(values)
	mean, std := forecast.Baseline(values)
	params, err := json.Marshal(scanParams{
		ThresholdSigma: thresholdSigma,
		From:           dayKey(from),
		To:             dayKey(to),
		Points:         len(values),
		Mean:           mean,
		Std:            std,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	out := make([]models.ForecastAnomaly, 0, len(flagged))
	for _, i := range flagged {
		out = append(out, models.ForecastAnomaly{
			UserID:       userID,
			EventDate:    series[i].Date,
			AnomalyValue: values[i],
			ZScore:       scores[i],
			ParamsJSON:   string(params),
		})
	}
	saved, err := s.store.SaveAnomalies(ctx, out)
	if err != nil {
		s.metrics.RecordError("anomaly_store")
		return nil, fmt.Errorf("save anomalies: %w", err)
	}
	s.metrics.RecordRowsPersisted("forecast_anomalies", len(saved))
	s.l.Info("anomaly scan",
		applogger.Int64("user_id", userID),
		applogger.Int("points", len(values)),
		applogger.Int("flagged", len(saved)),
		applogger.Float64("threshold_sigma", thresholdSigma),
	)
	return saved, nil
}

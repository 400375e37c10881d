package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// NightlyForecasts regenerates next-day forecasts for a fixed set of users once a day.
type NightlyForecasts struct {
	sched      *gocron.Scheduler
	forecaster domsvc.Forecaster
	configs    domrepo.ConfigStore
	userIDs    []int64
	horizon    int
	now        func() time.Time
	l          *applogger.Logger
}

// NewNightlyForecasts schedules RunOnce daily at at (HH:MM, UTC).
func NewNightlyForecasts(forecaster domsvc.Forecaster, configs domrepo.ConfigStore, userIDs []int64, at string, horizon int, l *applogger.Logger) (*NightlyForecasts, error) {
	if l == nil {
		l = applogger.Nop()
	}
	n := &NightlyForecasts{
		sched:      gocron.NewScheduler(time.UTC),
		forecaster: forecaster,
		configs:    configs,
		userIDs:    userIDs,
		horizon:    horizon,
		now:        time.Now,
		l:          l,
	}
	_, err := n.sched.Every(1).Day().At(at).Do(func() {
		if err := n.RunOnce(context.Background()); err != nil {
			n.l.Error("nightly forecasts failed", applogger.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule nightly forecasts at %q: %w", at, err)
	}
	return n, nil
}

func (n *NightlyForecasts) Start() {
	n.sched.StartAsync()
	n.l.Info("nightly forecasts scheduled", applogger.Int("users", len(n.userIDs)))
}

func (n *NightlyForecasts) Stop() {
	n.sched.Stop()
}

// RunOnce forecasts from tomorrow for every configured user. Users without
// stored configs get a linear regression default. One user's failure does not
// stop the others.
func (n *NightlyForecasts) RunOnce(ctx context.Context) error {
	start := util.Tomorrow(n.now())
	var errs []error
	for _, uid := range n.userIDs {
		cfgs, err := n.configs.ListByUser(ctx, uid)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", uid, err))
			continue
		}
		if len(cfgs) == 0 {
			cfgs = []models.ForecastConfig{{UserID: uid, Algorithm: models.AlgorithmLinearRegression}}
		}
		res, err := n.forecaster.BatchGenerate(ctx, uid, cfgs, start, n.horizon)
		if err != nil {
			n.l.Warn("nightly forecast failed", applogger.Int64("user_id", uid), applogger.Error(err))
			errs = append(errs, fmt.Errorf("user %d: %w", uid, err))
			continue
		}
		n.l.Info("nightly forecast done",
			applogger.Int64("user_id", uid),
			applogger.Date("start", start),
			applogger.Int("configs", res.Len()),
		)
	}
	return errors.Join(errs...)
}

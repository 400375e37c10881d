package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"
)

// BatchGenerate runs Generate for every config concurrently and joins the
// results in submission order, keyed by config identity. The first failure
// cancels the remaining work and fails the whole batch.
func (o *ForecastOrchestrator) BatchGenerate(ctx context.Context, userID int64, cfgs []models.ForecastConfig, start time.Time, horizonDays int) (*models.BatchResult, error) {
	t0 := time.Now()
	if err := checkHorizon(horizonDays); err != nil {
		return nil, err
	}

	keys := make([]int64, len(cfgs))
	rows := make([][]models.ForecastResult, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchConcurrency)
	for i, cfg := range cfgs {
		g.Go(func() error {
			stored, out, err := o.generate(gctx, userID, cfg, start, horizonDays)
			if err != nil {
				return fmt.Errorf("batch config %d: %w", i, err)
			}
			keys[i] = stored.KeyID()
			rows[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.metrics.RecordError("batch")
		o.l.Error("batch forecast failed",
			applogger.Int64("user_id", userID),
			applogger.Int("configs", len(cfgs)),
			applogger.Error(err),
		)
		return nil, err
	}

	out := models.NewBatchResult(len(cfgs))
	for i := range cfgs {
		out.Put(keys[i], rows[i])
	}
	o.metrics.RecordLatency("batch", time.Since(t0).Seconds())
	o.l.Info("batch forecast generated",
		applogger.Int64("user_id", userID),
		applogger.Int("configs", len(cfgs)),
		applogger.Int("keys", out.Len()),
		applogger.Duration("duration_ms", time.Since(t0)),
	)
	return out, nil
}

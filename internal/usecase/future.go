package usecase

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// Future is the pending result of an operation started in the background.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on its own goroutine and returns a Future for its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is ready or ctx ends. Abandoning a Future does
// not cancel the work; cancel the context passed to Go for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncForecaster adds non-blocking forms of the forecast operations to any
// Forecaster, cached or not.
type AsyncForecaster struct {
	domsvc.Forecaster
}

func NewAsyncForecaster(f domsvc.Forecaster) *AsyncForecaster {
	return &AsyncForecaster{Forecaster: f}
}

func (a *AsyncForecaster) GenerateAsync(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays int) *Future[[]models.ForecastResult] {
	return Go(ctx, func(ctx context.Context) ([]models.ForecastResult, error) {
		return a.Generate(ctx, userID, cfg, start, horizonDays)
	})
}

func (a *AsyncForecaster) BacktestAsync(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays, lookbackDays int) *Future[[]models.ForecastResult] {
	return Go(ctx, func(ctx context.Context) ([]models.ForecastResult, error) {
		return a.Backtest(ctx, userID, cfg, start, horizonDays, lookbackDays)
	})
}

func (a *AsyncForecaster) BatchGenerateAsync(ctx context.Context, userID int64, cfgs []models.ForecastConfig, start time.Time, horizonDays int) *Future[*models.BatchResult] {
	return Go(ctx, func(ctx context.Context) (*models.BatchResult, error) {
		return a.BatchGenerate(ctx, userID, cfgs, start, horizonDays)
	})
}

package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

// Worker is a background component with a context-bound lifecycle, such as a job queue.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Scheduler runs periodic tasks.
type Scheduler interface {
	Start()
	Stop()
}

// App owns the HTTP server and background components.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	workers    []Worker
	scheduler  Scheduler
}

// Option configures App.
type Option func(*App)

// WithWorker adds a background worker started before the HTTP server.
func WithWorker(w Worker) Option {
	return func(a *App) { a.workers = append(a.workers, w) }
}

// WithScheduler adds a periodic scheduler.
func WithScheduler(s Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, l: l, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is done or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := 0
	for _, w := range a.workers {
		if err := w.Start(ctx); err != nil {
			a.stopWorkers(a.workers[:started])
			return fmt.Errorf("start worker: %w", err)
		}
		started++
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}
	a.l.Info("fincast started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("series", a.cfg.Storage.Series),
		applogger.String("store", a.cfg.Storage.Store),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then background work.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.stopWorkersCtx(ctx, a.workers); err != nil && firstErr == nil {
		firstErr = err
	}
	a.l.Info("shutdown complete")
	return firstErr
}

func (a *App) stopWorkers(ws []Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	_ = a.stopWorkersCtx(ctx, ws)
}

func (a *App) stopWorkersCtx(ctx context.Context, ws []Worker) error {
	var firstErr error
	for i := len(ws) - 1; i >= 0; i-- {
		if err := ws[i].Stop(ctx); err != nil {
			a.l.Warn("worker stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

// ForecastJobType routes queued forecast jobs.
const ForecastJobType = "forecast.run"

var (
	_ queue.Job          = (*ForecastJobs)(nil)
	_ queue.DeadLetterer = (*ForecastJobs)(nil)
)

// JobPayload is the queued description of a forecast job.
type JobPayload struct {
	JobID        string                  `json:"job_id"`
	UserID       int64                   `json:"user_id"`
	Kind         models.JobKind          `json:"kind"`
	Configs      []models.ForecastConfig `json:"configs"`
	StartDate    time.Time               `json:"start_date"`
	HorizonDays  int                     `json:"horizon_days"`
	LookbackDays int                     `json:"lookback_days"`
}

// ForecastJobs submits forecast operations to the queue and runs them on the
// worker side, tracking their status in a JobStore.
type ForecastJobs struct {
	jobs       domrepo.JobStore
	queue      queue.Enqueuer
	forecaster domsvc.Forecaster
	l          *applogger.Logger
}

func NewForecastJobs(jobs domrepo.JobStore, forecaster domsvc.Forecaster, l *applogger.Logger) *ForecastJobs {
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastJobs{jobs: jobs, forecaster: forecaster, l: l}
}

// Bind sets the queue used by Submit. The queue usually registers j as its
// handler, so binding happens after both exist.
func (j *ForecastJobs) Bind(q queue.Enqueuer) { j.queue = q }

func (j *ForecastJobs) Name() string { return "forecast-job" }
func (j *ForecastJobs) Type() string { return ForecastJobType }

// Submit records a PENDING job and enqueues it.
func (j *ForecastJobs) Submit(ctx context.Context, p JobPayload) (models.ForecastJob, error) {
	if j.queue == nil {
		return models.ForecastJob{}, fmt.Errorf("job queue not configured")
	}
	if err := validatePayload(p); err != nil {
		return models.ForecastJob{}, err
	}
	p.JobID = uuid.NewString()
	job := models.ForecastJob{ID: p.JobID, UserID: p.UserID, Kind: p.Kind, Status: models.JobPending}
	if err := j.jobs.CreateJob(ctx, job); err != nil {
		return models.ForecastJob{}, fmt.Errorf("create job: %w", err)
	}
	if _, err := j.queue.Enqueue(ctx, ForecastJobType, p); err != nil {
		_ = j.jobs.UpdateJobStatus(ctx, job.ID, models.JobFailed, err.Error())
		return models.ForecastJob{}, fmt.Errorf("enqueue job: %w", err)
	}
	j.l.Info("forecast job queued",
		applogger.String("job_id", job.ID),
		applogger.Int64("user_id", p.UserID),
		applogger.String("kind", string(p.Kind)),
		applogger.Int("configs", len(p.Configs)),
	)
	return j.jobs.GetJob(ctx, job.ID)
}

// Status returns the tracked job.
func (j *ForecastJobs) Status(ctx context.Context, id string) (models.ForecastJob, error) {
	return j.jobs.GetJob(ctx, id)
}

// Handle runs a queued job. Domain errors fail the job permanently. Other
// errors put the job back to PENDING with the error message and are returned
// so the queue retries; DeadLetter marks it FAILED once retries run out.
func (j *ForecastJobs) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[JobPayload](payload)
	if err != nil {
		return err
	}
	if err := j.jobs.UpdateJobStatus(ctx, p.JobID, models.JobRunning, ""); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	start := time.Now()
	runErr := j.run(ctx, *p)
	if runErr == nil {
		j.l.Info("forecast job completed",
			applogger.String("job_id", p.JobID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
		return j.jobs.UpdateJobStatus(ctx, p.JobID, models.JobCompleted, "")
	}

	if errors.Is(runErr, models.ErrNotFound) || errors.Is(runErr, models.ErrInvalidParameter) {
		j.l.Warn("forecast job rejected", applogger.String("job_id", p.JobID), applogger.Error(runErr))
		j.markFailed(ctx, p.JobID, runErr)
		return nil
	}
	if err := j.jobs.UpdateJobStatus(ctx, p.JobID, models.JobPending, "retrying: "+runErr.Error()); err != nil {
		j.l.Error("mark retrying", applogger.String("job_id", p.JobID), applogger.Error(err))
	}
	return runErr
}

// DeadLetter marks a job FAILED after the queue exhausted its retries.
func (j *ForecastJobs) DeadLetter(ctx context.Context, payload interface{}, err error) {
	p, perr := queue.ParsePayload[JobPayload](payload)
	if perr != nil {
		j.l.Error("dead letter payload", applogger.Error(perr))
		return
	}
	j.l.Error("forecast job gave up", applogger.String("job_id", p.JobID), applogger.Error(err))
	j.markFailed(ctx, p.JobID, err)
}

func (j *ForecastJobs) markFailed(ctx context.Context, id string, cause error) {
	if err := j.jobs.UpdateJobStatus(ctx, id, models.JobFailed, cause.Error()); err != nil {
		j.l.Error("mark failed", applogger.String("job_id", id), applogger.Error(err))
	}
}

func (j *ForecastJobs) run(ctx context.Context, p JobPayload) error {
	switch p.Kind {
	case models.JobKindGenerate:
		_, err := j.forecaster.Generate(ctx, p.UserID, p.Configs[0], p.StartDate, p.HorizonDays)
		return err
	case models.JobKindBacktest:
		_, err := j.forecaster.Backtest(ctx, p.UserID, p.Configs[0], p.StartDate, p.HorizonDays, p.LookbackDays)
		return err
	case models.JobKindBatch:
		_, err := j.forecaster.BatchGenerate(ctx, p.UserID, p.Configs, p.StartDate, p.HorizonDays)
		return err
	default:
		return fmt.Errorf("%w: unknown job kind %q", models.ErrInvalidParameter, p.Kind)
	}
}

func validatePayload(p JobPayload) error {
	switch p.Kind {
	case models.JobKindGenerate, models.JobKindBacktest, models.JobKindBatch:
	default:
		return fmt.Errorf("%w: unknown job kind %q", models.ErrInvalidParameter, p.Kind)
	}
	if len(p.Configs) == 0 {
		return fmt.Errorf("%w: job needs at least one config", models.ErrInvalidParameter)
	}
	return checkHorizon(p.HorizonDays)
}

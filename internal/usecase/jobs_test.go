package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/repository"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

func TestScanAnomaliesFlagsSpike(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddUser(models.User{ID: 1})
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 100}
	seedBefore(store, 1, testStart, values...)

	scan := NewAnomalyScan(store, store, store, nil, nil)
	from, to := testStart.AddDate(0, 0, -10), testStart.AddDate(0, 0, -1)
	got, err := scan.ScanAnomalies(context.Background(), 1, from, to, 2)
	if err != nil {
		t.Fatalf("ScanAnomalies: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("flagged %d, want 1", len(got))
	}
	a := got[0]
	if !a.EventDate.Equal(to) || a.AnomalyValue != 100 {
		t.Fatalf("anomaly = %+v", a)
	}
	if math.Abs(a.ZScore-2.846) > 0.001 {
		t.Fatalf("z = %v, want ~2.846", a.ZScore)
	}
	if !strings.Contains(a.ParamsJSON, `"threshold_sigma":2`) {
		t.Fatalf("params = %s", a.ParamsJSON)
	}
	var params struct {
		Mean   float64 `json:"mean"`
		Std    float64 `json:"std"`
		Points int     `json:"points"`
	}
	if err := json.Unmarshal([]byte(a.ParamsJSON), &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.Mean != 19 || math.Abs(params.Std-math.Sqrt(810)) > 1e-9 || params.Points != 10 {
		t.Fatalf("params = %+v, want mean 19, std sqrt(810), 10 points", params)
	}
	if a.ID == "" || len(store.Anomalies()) != 1 {
		t.Fatalf("anomaly not persisted")
	}
}

func TestScanAnomaliesEdgeCases(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddUser(models.User{ID: 1})
	scan := NewAnomalyScan(store, store, store, nil, nil)
	ctx := context.Background()

	got, err := scan.ScanAnomalies(ctx, 1, testStart.AddDate(0, 0, -5), testStart, 2)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty history: %v %v", got, err)
	}
	if _, err := scan.ScanAnomalies(ctx, 1, testStart, testStart.AddDate(0, 0, -1), 2); !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("inverted range err = %v", err)
	}
	if _, err := scan.ScanAnomalies(ctx, 2, testStart, testStart, 2); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func waitForStatus(t *testing.T, jobs *ForecastJobs, id string, want models.JobStatus) models.ForecastJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		job, err := jobs.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s status = %s, want %s", id, job.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startJobs(t *testing.T, f domsvc.Forecaster, store *repository.MemoryStore) (*ForecastJobs, *queue.LocalQueue) {
	t.Helper()
	jobs := NewForecastJobs(store, f, nil)
	q := queue.NewLocalQueue(applogger.Nop(), queue.QueueConfig{Workers: 2, RetryLimit: 2, RetryDelay: time.Millisecond}, 8)
	q.RegisterJob(jobs)
	jobs.Bind(q)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return jobs, q
}

func TestForecastJobCompletes(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	seedBefore(store, 1, testStart, ints(10)...)
	jobs, _ := startJobs(t, o, store)

	job, err := jobs.Submit(context.Background(), JobPayload{
		UserID: 1,
		Kind:   models.JobKindBatch,
		Configs: []models.ForecastConfig{
			{Algorithm: models.AlgorithmLinearRegression},
			{Algorithm: models.AlgorithmSMA, WindowSize: intPtr(3)},
		},
		StartDate:   testStart,
		HorizonDays: 2,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID == "" || job.Kind != models.JobKindBatch {
		t.Fatalf("job = %+v", job)
	}
	waitForStatus(t, jobs, job.ID, models.JobCompleted)
	if len(store.Results()) != 4 {
		t.Fatalf("persisted %d rows, want 4", len(store.Results()))
	}
}

func TestForecastJobRejectsWithoutRetry(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	seedBefore(store, 1, testStart, ints(3)...)
	jobs, q := startJobs(t, o, store)

	job, err := jobs.Submit(context.Background(), JobPayload{
		UserID:      1,
		Kind:        models.JobKindGenerate,
		Configs:     []models.ForecastConfig{{Algorithm: models.AlgorithmSMA, WindowSize: intPtr(30)}},
		StartDate:   testStart,
		HorizonDays: 2,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitForStatus(t, jobs, job.ID, models.JobFailed)
	if got.ErrorMessage == "" {
		t.Fatalf("failed job has no message")
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(q.DeadLetters()); n != 0 {
		t.Fatalf("dead letters = %d, want 0", n)
	}
}

func TestForecastJobFailsOnlyAfterRetriesRunOut(t *testing.T) {
	store := repository.NewMemoryStore()
	next := &countingForecaster{err: errors.New("series source unavailable")}
	jobs, q := startJobs(t, next, store)

	job, err := jobs.Submit(context.Background(), JobPayload{
		UserID:      1,
		Kind:        models.JobKindGenerate,
		Configs:     []models.ForecastConfig{{ID: 3, Algorithm: models.AlgorithmSMA}},
		StartDate:   testStart,
		HorizonDays: 2,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitForStatus(t, jobs, job.ID, models.JobFailed)
	if n := next.generates.Load(); n != 3 {
		t.Fatalf("FAILED after %d attempts, want 3 (1 + 2 retries)", n)
	}
	if !strings.Contains(got.ErrorMessage, "series source unavailable") || strings.HasPrefix(got.ErrorMessage, "retrying") {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
	if n := len(q.DeadLetters()); n != 1 {
		t.Fatalf("dead letters = %d, want 1", n)
	}
}

func TestForecastJobSubmitValidates(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	jobs, _ := startJobs(t, o, store)
	ctx := context.Background()
	cfg := []models.ForecastConfig{{Algorithm: models.AlgorithmSMA}}

	cases := []JobPayload{
		{UserID: 1, Kind: "forecast-everything", Configs: cfg, HorizonDays: 2},
		{UserID: 1, Kind: models.JobKindGenerate, HorizonDays: 2},
		{UserID: 1, Kind: models.JobKindGenerate, Configs: cfg, HorizonDays: 0},
	}
	for _, p := range cases {
		if _, err := jobs.Submit(ctx, p); !errors.Is(err, models.ErrInvalidParameter) {
			t.Errorf("Submit(%+v) err = %v", p, err)
		}
	}
	if _, err := jobs.Status(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Status missing err = %v", err)
	}
}

func TestNightlyRunOnceUsesStoredConfigsOrDefault(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	store.AddUser(models.User{ID: 2})
	now := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)
	tomorrow := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	seedBefore(store, 1, tomorrow, ints(10)...)
	seedBefore(store, 2, tomorrow, ints(10)...)
	if _, err := store.Save(context.Background(), models.ForecastConfig{UserID: 2, Algorithm: models.AlgorithmSMA, WindowSize: intPtr(2)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := NewNightlyForecasts(o, store, []int64{1, 2}, "02:00", 1, nil)
	if err != nil {
		t.Fatalf("NewNightlyForecasts: %v", err)
	}
	n.now = func() time.Time { return now }
	if err := n.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	rows := store.Results()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if !r.TargetDate.Equal(tomorrow) {
			t.Errorf("target date = %s, want %s", r.TargetDate, tomorrow)
		}
		switch r.UserID {
		case 1:
			if v, _ := r.ForecastValue.Float64(); math.Abs(v-11) > 1e-9 {
				t.Errorf("user 1 default forecast = %v, want 11", v)
			}
		case 2:
			if v, _ := r.ForecastValue.Float64(); math.Abs(v-9.5) > 1e-9 {
				t.Errorf("user 2 sma forecast = %v, want 9.5", v)
			}
		}
	}
}

func TestNightlyRunOnceContinuesPastFailures(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	seedBefore(store, 1, testStart.AddDate(0, 0, 1), ints(5)...)

	n, err := NewNightlyForecasts(o, store, []int64{404, 1}, "02:00", 1, nil)
	if err != nil {
		t.Fatalf("NewNightlyForecasts: %v", err)
	}
	n.now = func() time.Time { return testStart }
	err = n.RunOnce(context.Background())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want joined not found", err)
	}
	if len(store.Results()) != 1 {
		t.Fatalf("user 1 not forecast after user 404 failed")
	}
}

func TestNightlyRejectsBadTime(t *testing.T) {
	if _, err := NewNightlyForecasts(nil, nil, nil, "25:99", 1, nil); err == nil {
		t.Fatalf("expected error for invalid time")
	}
}

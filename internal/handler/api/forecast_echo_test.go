package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
	"FinCast/pkg/util"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type list[T any] struct {
	Rows  []T   `json:"rows"`
	Total int64 `json:"total"`
}

type testAPI struct {
	e     *echo.Echo
	store *repository.MemoryStore
	mc    *cache.MemoryCache
}

func newTestAPI(t *testing.T, opts ...HandlerOption) *testAPI {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddUser(models.User{ID: 1})
	series := make([]models.DailyTotal, 10)
	for i := range series {
		series[i] = models.DailyTotal{Date: util.AddDays(testNow, i-10), Total: float64(i + 1)}
	}
	store.AddDailyTotals(1, series)

	orch := usecase.NewForecastOrchestrator(usecase.ForecastDeps{
		Users:       store,
		Series:      store,
		Configs:     store,
		Results:     store,
		Performance: store,
		Publisher:   repository.NopPublisher{},
	})
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	cached := usecase.NewResultCache(orch, mc, time.Hour, nil, nil)

	jobs := usecase.NewForecastJobs(store, cached, nil)
	q := queue.NewLocalQueue(xlogger.Nop(), queue.QueueConfig{Workers: 1, RetryDelay: time.Millisecond}, 4)
	q.RegisterJob(jobs)
	jobs.Bind(q)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("queue start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})

	opts = append([]HandlerOption{WithJobs(jobs), WithCacheInvalidator(cached)}, opts...)
	h := NewForecastEchoHandler(nil, cached, usecase.NewAnomalyScan(store, store, store, nil, nil), opts...)
	h.now = func() time.Time { return testNow }

	e := echo.New()
	h.RegisterRoutes(e)
	return &testAPI{e: e, store: store, mc: mc}
}

func (a *testAPI) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestGenerateEndpoint(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, http.MethodGet, "/api/forecasts/1?algorithm=LINEAR_REGRESSION&horizonDays=3&startDate=2024-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got list[models.ForecastResult]
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if got.Total != 3 || len(got.Rows) != 3 {
		t.Fatalf("rows = %d", len(got.Rows))
	}
	if v, _ := got.Rows[0].ForecastValue.Float64(); v != 11 {
		t.Errorf("first value = %v, want 11", v)
	}
	if !got.Rows[2].TargetDate.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last target = %s", got.Rows[2].TargetDate)
	}
}

func TestGenerateEndpointErrors(t *testing.T) {
	a := newTestAPI(t)
	cases := []struct {
		target string
		want   int
	}{
		{"/api/forecasts/99?algorithm=SMA", http.StatusNotFound},
		{"/api/forecasts/1?algorithm=ARIMA", http.StatusBadRequest},
		{"/api/forecasts/1?horizonDays=500", http.StatusBadRequest},
		{"/api/forecasts/1?startDate=yesterday", http.StatusBadRequest},
		{"/api/forecasts/1?algorithm=SMA&windowSize=40", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec, _ := a.do(t, http.MethodGet, tc.target, "")
		if rec.Code != tc.want {
			t.Errorf("GET %s = %d, want %d (%s)", tc.target, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestBatchEndpointKeepsOrder(t *testing.T) {
	a := newTestAPI(t)
	body := `{"configs":[{"config_id":20,"algorithm":"SMA","window_size":3},{"config_id":10,"algorithm":"EWMA","smoothing_factor":0.5}],"start_date":"2024-06-01","horizon_days":2}`
	rec, env := a.do(t, http.MethodPost, "/api/forecasts/1/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got list[BatchEntry]
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[0].ConfigID != 20 || got.Rows[1].ConfigID != 10 {
		t.Fatalf("entries = %+v", got.Rows)
	}
	for _, entry := range got.Rows {
		if len(entry.Results) != 2 {
			t.Errorf("config %d has %d rows", entry.ConfigID, len(entry.Results))
		}
	}

	rec, _ = a.do(t, http.MethodPost, "/api/forecasts/1/batch", `{"configs":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty configs status = %d", rec.Code)
	}
}

func TestAccuracyEndpoint(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, http.MethodGet, "/api/forecasts/1/accuracy?algorithm=LINEAR_REGRESSION&startDate=2024-06-01&horizonDays=3&lookbackDays=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got models.AccuracyMetrics
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MAPE == nil || *got.MAPE > 1e-6 {
		t.Fatalf("mape = %v, want 0 on a linear series", got.MAPE)
	}
	if got.HorizonDays != 3 || got.LookbackDays != 30 || got.ConfigID == 0 {
		t.Fatalf("metrics = %+v", got)
	}
}

func TestAnomaliesEndpoint(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, http.MethodGet, "/api/forecasts/1/anomalies?lookbackDays=30&threshold=1.5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got list[models.ForecastAnomaly]
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != int64(len(a.store.Anomalies())) {
		t.Fatalf("returned %d, stored %d", got.Total, len(a.store.Anomalies()))
	}
}

func TestJobEndpoints(t *testing.T) {
	a := newTestAPI(t)
	rec, env := a.do(t, http.MethodPost, "/api/forecasts/1/jobs", `{"kind":"batch","configs":[{"config_id":5,"algorithm":"SMA","window_size":2}],"start_date":"2024-06-01","horizon_days":2}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s", rec.Code, rec.Body.String())
	}
	var job models.ForecastJob
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		rec, env = a.do(t, http.MethodGet, "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d", rec.Code)
		}
		if err := json.Unmarshal(env.Data, &job); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if job.Status == models.JobCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec, _ = a.do(t, http.MethodGet, "/api/jobs/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
	rec, _ = a.do(t, http.MethodGet, "/api/jobs/6f1c2a9e-4c1b-4a57-9d7e-1f0d3c2b5a61", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", rec.Code)
	}
}

func TestInvalidateCacheEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodGet, "/api/forecasts/1?configId=3&algorithm=SMA&windowSize=2&startDate=2024-06-01", "")
	if a.mc.Len() == 0 {
		t.Fatalf("nothing cached")
	}
	rec, _ := a.do(t, http.MethodDelete, "/api/forecasts/1/cache", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if a.mc.Len() != 0 {
		t.Fatalf("cache not cleared")
	}
	rec, _ = a.do(t, http.MethodDelete, "/api/forecasts/abc/cache", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad user status = %d", rec.Code)
	}
}

func TestComputeEndpointsAreThrottled(t *testing.T) {
	a := newTestAPI(t, WithLimiter(ratelimit.New(2, 0.001)))
	target := "/api/forecasts/1?algorithm=SMA&windowSize=2&startDate=2024-06-01"
	for i := 0; i < 2; i++ {
		if rec, _ := a.do(t, http.MethodGet, target, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec, _ := a.do(t, http.MethodGet, target, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
}

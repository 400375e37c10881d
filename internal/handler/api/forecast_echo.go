package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	"FinCast/pkg/http/middleware"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// JobService submits and tracks queued forecast jobs.
type JobService interface {
	Submit(ctx context.Context, p usecase.JobPayload) (models.ForecastJob, error)
	Status(ctx context.Context, id string) (models.ForecastJob, error)
}

// CacheInvalidator drops cached results for a user.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// ForecastEchoHandler serves the forecast API.
type ForecastEchoHandler struct {
	logger     *xlogger.Logger
	forecaster domsvc.Forecaster
	anomalies  domsvc.AnomalyScanner
	jobs       JobService
	cache      CacheInvalidator
	limiter    middleware.Allower
	now        func() time.Time
}

// HandlerOption configures ForecastEchoHandler.
type HandlerOption func(*ForecastEchoHandler)

// WithJobs enables the job endpoints.
func WithJobs(j JobService) HandlerOption {
	return func(h *ForecastEchoHandler) { h.jobs = j }
}

// WithCacheInvalidator enables DELETE /api/forecasts/:userId/cache.
func WithCacheInvalidator(c CacheInvalidator) HandlerOption {
	return func(h *ForecastEchoHandler) { h.cache = c }
}

// WithLimiter throttles compute endpoints per user.
func WithLimiter(a middleware.Allower) HandlerOption {
	return func(h *ForecastEchoHandler) { h.limiter = a }
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecaster domsvc.Forecaster, anomalies domsvc.AnomalyScanner, opts ...HandlerOption) *ForecastEchoHandler {
	h := &ForecastEchoHandler{logger: logger, forecaster: forecaster, anomalies: anomalies, now: time.Now}
	if h.logger == nil {
		h.logger = xlogger.Nop()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")

	compute := []echo.MiddlewareFunc{}
	if h.limiter != nil {
		compute = append(compute, middleware.RateLimit(h.limiter, func(c echo.Context) string {
			return "user:" + c.Param("userId")
		}))
	}
	g.GET("/forecasts/:userId", h.Generate, compute...)
	g.POST("/forecasts/:userId/batch", h.Batch, compute...)
	g.GET("/forecasts/:userId/accuracy", h.Accuracy, compute...)
	g.GET("/forecasts/:userId/anomalies", h.Anomalies, compute...)
	if h.jobs != nil {
		g.POST("/forecasts/:userId/jobs", h.SubmitJob, compute...)
		g.GET("/jobs/:jobId", h.JobStatus)
	}
	if h.cache != nil {
		g.DELETE("/forecasts/:userId/cache", h.InvalidateCache)
	}
}

// BatchEntry is one config's results in a batch response.
type BatchEntry struct {
	ConfigID int64                   `json:"config_id"`
	Results  []models.ForecastResult `json:"results"`
}

func (h *ForecastEchoHandler) Generate(c echo.Context) error {
	req := &models.GenerateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := h.startDate(req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	rows, err := h.forecaster.Generate(c.Request().Context(), req.UserID, req.ConfigRequest.ToConfig(req.UserID), start, req.HorizonDays)
	if err != nil {
		return h.fail(c, "generate", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ForecastEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := h.startDate(req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	cfgs := make([]models.ForecastConfig, len(req.Configs))
	for i, r := range req.Configs {
		cfgs[i] = r.ToConfig(req.UserID)
	}

	res, err := h.forecaster.BatchGenerate(c.Request().Context(), req.UserID, cfgs, start, req.HorizonDays)
	if err != nil {
		return h.fail(c, "batch", err)
	}
	out := make([]BatchEntry, 0, res.Len())
	for _, k := range res.Keys {
		rows, _ := res.Get(k)
		out = append(out, BatchEntry{ConfigID: k, Results: rows})
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *ForecastEchoHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := h.startDate(req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	cfg := req.Config()
	rows, err := h.forecaster.Backtest(c.Request().Context(), req.UserID, cfg, start, req.HorizonDays, req.LookbackDays)
	if err != nil {
		return h.fail(c, "accuracy", err)
	}
	return xhttp.SuccessResponse(c, usecase.Accuracy(cfg, rows, req.HorizonDays, req.LookbackDays))
}

func (h *ForecastEchoHandler) Anomalies(c echo.Context) error {
	req := &models.AnomalyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := util.Window(h.now(), req.LookbackDays)

	found, err := h.anomalies.ScanAnomalies(c.Request().Context(), req.UserID, from, to, req.Threshold)
	if err != nil {
		return h.fail(c, "anomalies", err)
	}
	return xhttp.ListResponse(c, found, int64(len(found)))
}

func (h *ForecastEchoHandler) SubmitJob(c echo.Context) error {
	req := &models.JobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := h.startDate(req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	cfgs := make([]models.ForecastConfig, len(req.Configs))
	for i, r := range req.Configs {
		cfgs[i] = r.ToConfig(req.UserID)
	}

	job, err := h.jobs.Submit(c.Request().Context(), usecase.JobPayload{
		UserID:       req.UserID,
		Kind:         models.JobKind(req.Kind),
		Configs:      cfgs,
		StartDate:    start,
		HorizonDays:  req.HorizonDays,
		LookbackDays: req.LookbackDays,
	})
	if err != nil {
		return h.fail(c, "submit job", err)
	}
	return xhttp.AcceptedResponse(c, job)
}

func (h *ForecastEchoHandler) JobStatus(c echo.Context) error {
	req := &models.JobStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.Status(c.Request().Context(), req.JobID)
	if err != nil {
		return h.fail(c, "job status", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *ForecastEchoHandler) InvalidateCache(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid user id").OnField("userId").WithParam("value", c.Param("userId")))
	}
	if err := h.cache.Invalidate(c.Request().Context(), userID); err != nil {
		return h.fail(c, "invalidate cache", err)
	}
	return xhttp.NoContentResponse(c)
}

// startDate parses s or defaults to tomorrow.
func (h *ForecastEchoHandler) startDate(s string) (time.Time, error) {
	t, err := util.ParseDateDefault(s, util.Tomorrow(h.now()))
	if err != nil {
		return time.Time{}, xhttp.BadRequestErrorf("startDate: %v", err).OnField("startDate").WithParam("value", s)
	}
	return t, nil
}

func (h *ForecastEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" failed", xlogger.String("route", c.Path()), xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("route", c.Path()), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrInvalidParameter):
		return xhttp.BadRequestError(err.Error())
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}

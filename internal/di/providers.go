package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/repository"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
)

// Storage groups the repositories selected by config.
type Storage struct {
	Series      repository.SeriesSource
	Users       repository.UserDirectory
	Configs     repository.ConfigStore
	Results     repository.ResultStore
	Performance repository.PerformanceStore
	Anomalies   repository.AnomalyStore
	Jobs        repository.JobStore
}

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse and creates the result tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CHSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideStorage opens the configured backends. The memory series backend
// reads from whichever local store is open.
func ProvideStorage(cfg *config.Config, l *applogger.Logger) (*Storage, func(), error) {
	st := &Storage{}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				l.Warn("storage close error", applogger.Error(err))
			}
		}
	}
	fail := func(err error) (*Storage, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var local interface {
		repository.SeriesSource
		repository.UserDirectory
		repository.ConfigStore
		repository.ResultStore
		repository.PerformanceStore
		repository.AnomalyStore
		repository.JobStore
	}
	if cfg.Storage.Store == "memory" {
		local = internalrepo.NewMemoryStore()
	} else {
		lite, err := internalrepo.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("sqlite store: %w", err))
		}
		closers = append(closers, lite.Close)
		local = lite
	}
	st.Series, st.Users, st.Configs, st.Jobs = local, local, local, local
	st.Results, st.Performance, st.Anomalies = local, local, local

	var ch *pkgch.Client
	clickhouse := func() (*pkgch.Client, error) {
		if ch != nil {
			return ch, nil
		}
		c, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		closers = append(closers, c.Close)
		ch = c
		return c, nil
	}

	if cfg.Storage.Store == "clickhouse" {
		c, err := clickhouse()
		if err != nil {
			return fail(err)
		}
		rs := internalrepo.NewCHResultStore(c, cfg.ClickHouse.Database)
		rs.SetLogger(l)
		st.Results, st.Performance, st.Anomalies = rs, rs, rs
	}

	switch cfg.Storage.Series {
	case "clickhouse":
		c, err := clickhouse()
		if err != nil {
			return fail(err)
		}
		src := internalrepo.NewCHSeriesSource(c, cfg.ClickHouse.Database+"."+cfg.ClickHouse.SourceTable)
		src.SetLogger(l)
		st.Series = src
	case "mysql":
		db, err := internalrepo.OpenMySQL(cfg.MySQL.DSN, cfg.MySQL.MaxOpen)
		if err != nil {
			return fail(err)
		}
		src := internalrepo.NewMySQLSeriesSource(db, cfg.MySQL.SourceTable)
		src.SetLogger(l)
		closers = append(closers, src.Close)
		st.Series, st.Users = src, src
	}

	l.Info("storage ready",
		applogger.String("series", cfg.Storage.Series),
		applogger.String("store", cfg.Storage.Store),
	)
	return st, cleanup, nil
}

// ProvideRedisClient dials Redis when enabled and returns nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, 30*time.Second),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache selects the result cache backend.
func ProvideCache(cfg *config.Config, rdb *redis.Client) (cache.Service, func(), error) {
	switch cfg.Cache.Mode {
	case "redis":
		return cache.NewRedisCache(rdb, cfg.Redis.Prefix), func() {}, nil
	case "layered":
		return cache.NewLayeredCache(
			cache.NewRedisCache(rdb, cfg.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(time.Minute),
		), func() {}, nil
	default:
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.SweepInterval),
		)
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvidePublisher returns a Kafka publisher when enabled and a no-op otherwise.
func ProvidePublisher(cfg *config.Config, l *applogger.Logger) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

func ProvideOrchestrator(cfg *config.Config, st *Storage, pub repository.EventPublisher, m repository.Metrics, l *applogger.Logger) *usecase.ForecastOrchestrator {
	return usecase.NewForecastOrchestrator(usecase.ForecastDeps{
		Users:       st.Users,
		Series:      st.Series,
		Configs:     st.Configs,
		Results:     st.Results,
		Performance: st.Performance,
		Publisher:   pub,
		Metrics:     m,
		Logger:      l,
	},
		usecase.WithLookbackDays(cfg.Forecast.LookbackDays),
		usecase.WithBatchConcurrency(cfg.Forecast.BatchConcurrency),
	)
}

func ProvideResultCache(cfg *config.Config, orch *usecase.ForecastOrchestrator, store cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.ResultCache {
	return usecase.NewResultCache(orch, store, cfg.Forecast.CacheTTL, m, l,
		usecase.WithFillLock(cfg.Cache.LockTTL, cfg.Cache.LockWait),
	)
}

func ProvideAnomalyScan(st *Storage, m repository.Metrics, l *applogger.Logger) *usecase.AnomalyScan {
	return usecase.NewAnomalyScan(st.Users, st.Series, st.Anomalies, m, l)
}

func ProvideForecastJobs(st *Storage, rc *usecase.ResultCache, l *applogger.Logger) *usecase.ForecastJobs {
	return usecase.NewForecastJobs(st.Jobs, rc, l)
}

// ProvideQueue builds the job queue, Redis-backed when enabled and in-process
// otherwise, and binds the forecast job to it.
func ProvideQueue(cfg *config.Config, jobs *usecase.ForecastJobs, rdb *redis.Client, l *applogger.Logger) server.Worker {
	qcfg := queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if cfg.Queue.Enabled && rdb != nil {
		q := queue.NewRedisQueue(l, qcfg, rdb, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
		q.RegisterJob(jobs)
		jobs.Bind(q)
		return q
	}
	q := queue.NewLocalQueue(l, qcfg, 256)
	q.RegisterJob(jobs)
	jobs.Bind(q)
	return q
}

// ProvideScheduler returns nil when the nightly run is disabled.
func ProvideScheduler(cfg *config.Config, rc *usecase.ResultCache, st *Storage, l *applogger.Logger) (*usecase.NightlyForecasts, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	return usecase.NewNightlyForecasts(rc, st.Configs, cfg.Scheduler.UserIDs, cfg.Scheduler.At, cfg.Forecast.DefaultHorizon, l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

func ProvideHandler(l *applogger.Logger, rc *usecase.ResultCache, scan *usecase.AnomalyScan, jobs *usecase.ForecastJobs, lim *ratelimit.Limiter) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, rc, scan,
		api.WithJobs(jobs),
		api.WithCacheInvalidator(rc),
		api.WithLimiter(lim),
	)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastEchoHandler) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(path),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, q server.Worker, sched *usecase.NightlyForecasts) *server.App {
	opts := []server.Option{server.WithWorker(q)}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	return server.New(cfg, l, srv, opts...)
}

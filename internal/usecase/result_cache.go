package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"golang.org/x/sync/singleflight"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
)

var _ domsvc.Forecaster = (*ResultCache)(nil)

const (
	generatePrefix = "fc:gen"
	backtestPrefix = "fc:bt"
	batchPrefix    = "fc:batch"
)

// ResultCache memoizes forecast operations by their full parameter set.
// Configs without identity are never cached since they have no stable key.
//
// Misses are coalesced twice: singleflight within the process, and a
// store-level lock per key across processes sharing a Redis backend.
type ResultCache struct {
	next    domsvc.Forecaster
	store   cache.Service
	ttl     time.Duration
	group   singleflight.Group
	metrics domrepo.Metrics
	l       *applogger.Logger

	lockTTL   time.Duration
	lockWait  time.Duration
	pollEvery time.Duration
}

// ResultCacheOption configures ResultCache.
type ResultCacheOption func(*ResultCache)

// WithFillLock sets how long a fill lock lives and how long a process that
// lost the lock waits for the holder's entry before computing on its own.
func WithFillLock(ttl, wait time.Duration) ResultCacheOption {
	return func(c *ResultCache) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
		if wait >= 0 {
			c.lockWait = wait
		}
	}
}

func NewResultCache(next domsvc.Forecaster, store cache.Service, ttl time.Duration, m domrepo.Metrics, l *applogger.Logger, opts ...ResultCacheOption) *ResultCache {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	c := &ResultCache{
		next:      next,
		store:     store,
		ttl:       ttl,
		metrics:   m,
		l:         l,
		lockTTL:   30 * time.Second,
		lockWait:  5 * time.Second,
		pollEvery: 25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func lockKey(key string) string { return "lock:" + key }

func dayKey(t time.Time) string { return t.UTC().Format(time.DateOnly) }

// GenerateKey is fc:gen:{user}:{config}:{start}:{h}.
func GenerateKey(userID, configID int64, start time.Time, horizonDays int) string {
	return cache.GenerateKeyWithParams(generatePrefix, userID, configID, dayKey(start), horizonDays)
}

// BacktestKey is fc:bt:{user}:{config}:{start}:{h}:{lookback}.
func BacktestKey(userID, configID int64, start time.Time, horizonDays, lookbackDays int) string {
	return cache.GenerateKeyWithParams(backtestPrefix, userID, configID, dayKey(start), horizonDays, lookbackDays)
}

// BatchKey is fc:batch:{user}:{sorted config ids}:{start}:{h}.
func BatchKey(userID int64, configIDs []int64, start time.Time, horizonDays int) string {
	ids := append([]int64(nil), configIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return cache.GenerateKeyWithParams(batchPrefix, userID, strings.Join(parts, ","), dayKey(start), horizonDays)
}

func (c *ResultCache) Generate(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays int) ([]models.ForecastResult, error) {
	if cfg.ID == 0 {
		return c.next.Generate(ctx, userID, cfg, start, horizonDays)
	}
	key := GenerateKey(userID, cfg.ID, start, horizonDays)
	return load(ctx, c, "generate", key, func(ctx context.Context) ([]models.ForecastResult, error) {
		return c.next.Generate(ctx, userID, cfg, start, horizonDays)
	})
}

func (c *ResultCache) Backtest(ctx context.Context, userID int64, cfg models.ForecastConfig, start time.Time, horizonDays, lookbackDays int) ([]models.ForecastResult, error) {
	if cfg.ID == 0 {
		return c.next.Backtest(ctx, userID, cfg, start, horizonDays, lookbackDays)
	}
	key := BacktestKey(userID, cfg.ID, start, horizonDays, lookbackDays)
	return load(ctx, c, "backtest", key, func(ctx context.Context) ([]models.ForecastResult, error) {
		return c.next.Backtest(ctx, userID, cfg, start, horizonDays, lookbackDays)
	})
}

// BatchGenerate caches by the set of config IDs. A hit is re-keyed into the
// caller's submission order.
func (c *ResultCache) BatchGenerate(ctx context.Context, userID int64, cfgs []models.ForecastConfig, start time.Time, horizonDays int) (*models.BatchResult, error) {
	ids := make([]int64, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.ID == 0 {
			return c.next.BatchGenerate(ctx, userID, cfgs, start, horizonDays)
		}
		ids[i] = cfg.ID
	}
	key := BatchKey(userID, ids, start, horizonDays)
	res, err := load(ctx, c, "batch", key, func(ctx context.Context) (*models.BatchResult, error) {
		return c.next.BatchGenerate(ctx, userID, cfgs, start, horizonDays)
	})
	if err != nil {
		return nil, err
	}
	return inSubmissionOrder(res, ids), nil
}

func inSubmissionOrder(res *models.BatchResult, ids []int64) *models.BatchResult {
	out := models.NewBatchResult(len(ids))
	for _, id := range ids {
		if rows, ok := res.Get(id); ok {
			out.Put(id, rows)
		}
	}
	// keys outside the request (never expected) keep their cached order
	for _, k := range res.Keys {
		if _, ok := out.Get(k); !ok {
			rows, _ := res.Get(k)
			out.Put(k, rows)
		}
	}
	return out
}

// Invalidate drops every cached entry of userID.
func (c *ResultCache) Invalidate(ctx context.Context, userID int64) error {
	var errs []error
	for _, prefix := range []string{generatePrefix, backtestPrefix, batchPrefix} {
		pattern := cache.BuildPattern(cache.GenerateKeyWithParams(prefix, userID) + ":")
		if err := c.store.DeleteByPattern(ctx, pattern); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pattern, err))
		}
	}
	return errors.Join(errs...)
}

// load serves key from the cache or computes it once across concurrent
// callers. The shared computation runs detached from any one caller, so a
// cancelled caller gets ctx.Err() while the others still receive the result.
func load[T any](ctx context.Context, c *ResultCache, op, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := lookup[T](ctx, c, key); ok {
		c.metrics.RecordCache(op, true)
		return v, nil
	}
	c.metrics.RecordCache(op, false)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fill(context.WithoutCancel(ctx), c, key, compute)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func lookup[T any](ctx context.Context, c *ResultCache, key string) (T, bool) {
	var v T
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.l.Warn("cache get failed", applogger.String("key", key), applogger.Error(err))
		}
		return v, false
	}
	if err := decodeEntry(raw, &v); err != nil {
		c.l.Warn("cache entry undecodable", applogger.String("key", key), applogger.Error(err))
		return v, false
	}
	return v, true
}

// fill computes key while holding its store lock. When another process holds
// the lock, fill waits up to lockWait for that entry, then computes anyway.
func fill[T any](ctx context.Context, c *ResultCache, key string, compute func(context.Context) (T, error)) (T, error) {
	locked, err := c.store.TryLock(ctx, lockKey(key), c.lockTTL)
	switch {
	case err != nil:
		c.l.Warn("cache lock failed", applogger.String("key", key), applogger.Error(err))
	case locked:
		defer func() {
			if err := c.store.Unlock(ctx, lockKey(key)); err != nil {
				c.l.Warn("cache unlock failed", applogger.String("key", key), applogger.Error(err))
			}
		}()
	default:
		if v, ok := awaitEntry[T](ctx, c, key); ok {
			return v, nil
		}
		c.l.Debug("cache lock holder too slow, computing", applogger.String("key", key))
	}

	res, err := compute(ctx)
	if err != nil {
		return res, err
	}
	if enc, err := encodeEntry(res); err != nil {
		c.l.Warn("cache encode failed", applogger.String("key", key), applogger.Error(err))
	} else if err := c.store.Set(ctx, key, enc, c.ttl); err != nil {
		c.l.Warn("cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return res, nil
}

func awaitEntry[T any](ctx context.Context, c *ResultCache, key string) (T, bool) {
	var zero T
	deadline := time.NewTimer(c.lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollEvery)
	defer tick.Stop()
	for {
		select {
		case <-deadline.C:
			return zero, false
		case <-tick.C:
			if v, ok := lookup[T](ctx, c, key); ok {
				return v, true
			}
		}
	}
}

func encodeEntry(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeEntry(data []byte, v interface{}) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("snappy decode: %w", err)
	}
	return json.Unmarshal(raw, v)
}

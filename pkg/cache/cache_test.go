package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory(t *testing.T, size int) (*MemoryCache, *fakeClock) {
	t.Helper()
	mc := NewMemoryCache(WithMemoryMaxSize(size))
	t.Cleanup(func() { _ = mc.Close() })
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	mc.now = clock.now
	return mc, clock
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t, 10)

	if _, err := mc.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get missing err = %v, want ErrCacheMiss", err)
	}
	if err := mc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := mc.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v; want v", got, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t, 10)

	_ = mc.Set(ctx, "k", []byte("v"), time.Minute)
	clock.advance(2 * time.Minute)
	if _, err := mc.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired Get err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t, 2)

	_ = mc.Set(ctx, "a", []byte("1"), time.Hour)
	clock.advance(time.Second)
	_ = mc.Set(ctx, "b", []byte("2"), time.Hour)
	clock.advance(time.Second)
	if _, err := mc.Get(ctx, "a"); err != nil {
		t.Fatalf("Get a: %v", err)
	}
	clock.advance(time.Second)
	_ = mc.Set(ctx, "c", []byte("3"), time.Hour)

	if _, err := mc.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b should have been evicted, err = %v", err)
	}
	if mc.Len() != 2 {
		t.Fatalf("Len = %d, want 2", mc.Len())
	}
}

func TestMemoryDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(t, 10)

	_ = mc.Set(ctx, "fc:gen:1:a", []byte("x"), time.Hour)
	_ = mc.Set(ctx, "fc:gen:12:a", []byte("x"), time.Hour)
	_ = mc.Set(ctx, "fc:bt:1:a", []byte("x"), time.Hour)

	if err := mc.DeleteByPattern(ctx, BuildPattern("fc:gen:1:")); err != nil {
		t.Fatalf("DeleteByPattern: %v", err)
	}
	if _, err := mc.Get(ctx, "fc:gen:1:a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("fc:gen:1:a still present")
	}
	if _, err := mc.Get(ctx, "fc:gen:12:a"); err != nil {
		t.Errorf("fc:gen:12:a removed: %v", err)
	}
	if _, err := mc.Get(ctx, "fc:bt:1:a"); err != nil {
		t.Errorf("fc:bt:1:a removed: %v", err)
	}
}

func TestMemoryTryLock(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t, 10)

	ok, _ := mc.TryLock(ctx, "lock", time.Second)
	if !ok {
		t.Fatalf("first TryLock failed")
	}
	if ok, _ := mc.TryLock(ctx, "lock", time.Second); ok {
		t.Fatalf("second TryLock succeeded")
	}
	clock.advance(2 * time.Second)
	if ok, _ := mc.TryLock(ctx, "lock", time.Second); !ok {
		t.Fatalf("TryLock after expiry failed")
	}
	_ = mc.Unlock(ctx, "lock")
	if ok, _ := mc.TryLock(ctx, "lock", time.Second); !ok {
		t.Fatalf("TryLock after Unlock failed")
	}
}

func TestLayeredReadsThroughAndBackfills(t *testing.T) {
	ctx := context.Background()
	l2, _ := newTestMemory(t, 10)
	lc := NewLayeredCache(l2)
	t.Cleanup(func() { _ = lc.l1.Close() })

	_ = l2.Set(ctx, "k", []byte("remote"), time.Hour)
	got, err := lc.Get(ctx, "k")
	if err != nil || string(got) != "remote" {
		t.Fatalf("Get = %q, %v; want remote", got, err)
	}
	if _, err := lc.l1.Get(ctx, "k"); err != nil {
		t.Fatalf("L1 not backfilled: %v", err)
	}

	if err := lc.Set(ctx, "w", []byte("both"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := l2.Get(ctx, "w"); string(v) != "both" {
		t.Fatalf("L2 value = %q, want both", v)
	}

	_ = lc.Delete(ctx, "w")
	if _, err := lc.Get(ctx, "w"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after Delete err = %v, want ErrCacheMiss", err)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("fc:gen", int64(3), 7, "2024-01-02"); got != "fc:gen:3:7:2024-01-02" {
		t.Fatalf("key = %q", got)
	}
}

package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(3, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow("a") {
		t.Fatalf("fourth request allowed")
	}
	if !l.Allow("b") {
		t.Fatalf("keys share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("token not refilled after 1s")
	}
	if l.Allow("a") {
		t.Fatalf("refilled more than one token")
	}
}

func TestLimiterDropsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(5 * time.Second)
	l.Allow("c")
	if n := l.Len(); n != 1 {
		t.Fatalf("tracked keys = %d, want 1", n)
	}
}

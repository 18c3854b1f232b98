package util

import (
	"context"
	"testing"
	"time"
)

func TestRunLimiter(t *testing.T) {
	// ten runs a second, one pending
	l := NewRunLimiter(600)

	if !l.Allow() {
		t.Error("expected first run to be allowed")
	}
	if l.Allow() {
		t.Error("expected second run to wait for a refill")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected a run after the refill")
	}
}

func TestRunLimiter_Unlimited(t *testing.T) {
	l := NewRunLimiter(0)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("run %d rejected by an unlimited limiter", i)
		}
	}
	if got := l.Rate(); got != 0 {
		t.Fatalf("expected rate 0 for unlimited, got %d", got)
	}
}

func TestRunLimiter_SetRate(t *testing.T) {
	l := NewRunLimiter(1)
	if got := l.Rate(); got != 1 {
		t.Fatalf("expected rate 1, got %d", got)
	}
	if !l.Allow() || l.Allow() {
		t.Fatal("expected exactly one run before the refill")
	}

	l.SetRate(0)
	if !l.Allow() {
		t.Fatal("expected an unlimited limiter to allow the run")
	}

	l.SetRate(30)
	if got := l.Rate(); got != 30 {
		t.Fatalf("expected rate 30, got %d", got)
	}
}

func TestRunLimiter_WaitHonoursContext(t *testing.T) {
	l := NewRunLimiter(1)
	if !l.Allow() {
		t.Fatal("expected the first run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected wait to fail once the context expires")
	}
}

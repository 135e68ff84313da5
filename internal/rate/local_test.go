package rate

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestLocalLoginBudgetRefills(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocal(loginConfig(), clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "carol", ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		_ = l.IncrementLogin(ctx, "carol", "")
	}
	if err := l.CheckLogin(ctx, "carol", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	clock.now = clock.now.Add(time.Minute)
	if err := l.CheckLogin(ctx, "carol", ""); err != nil {
		t.Fatalf("expected refill after cooldown, got %v", err)
	}
}

func TestLocalResetLogin(t *testing.T) {
	l := NewLocal(loginConfig(), nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "dave", "10.1.1.1")
	}
	if err := l.ResetLogin(ctx, "dave", "10.1.1.1"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if err := l.CheckLogin(ctx, "dave", "10.1.1.1"); err != nil {
		t.Fatalf("expected cleared budget, got %v", err)
	}
}

func TestLocalRefreshThrottle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocal(loginConfig(), clock.Now)
	ctx := context.Background()

	_ = l.CheckRefresh(ctx, "sid")
	_ = l.CheckRefresh(ctx, "sid")
	if err := l.CheckRefresh(ctx, "sid"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	cfg := loginConfig()
	cfg.EnableRefreshThrottle = false
	off := NewLocal(cfg, nil)
	for i := 0; i < 10; i++ {
		if err := off.CheckRefresh(ctx, "sid"); err != nil {
			t.Fatalf("disabled throttle must pass: %v", err)
		}
	}
}

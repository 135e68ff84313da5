package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, "test", cfg), mr
}

func loginConfig() Config {
	return Config{
		EnableIPThrottle:        true,
		EnableRefreshThrottle:   true,
		MaxLoginAttempts:        3,
		LoginCooldownDuration:   time.Minute,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	}
}

func TestLimiterLoginWindow(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "Alice@Example.com", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i+1, err)
		}
		_ = l.IncrementLogin(ctx, "alice@example.com", "10.0.0.1")
	}
	if err := l.CheckLogin(ctx, "alice@example.com", "10.0.0.2"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "alice@example.com"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}

	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterIPThrottleAcrossAccounts(t *testing.T) {
	l, _ := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		_ = l.IncrementLogin(ctx, user, "10.0.0.9")
	}
	if err := l.CheckLogin(ctx, "d", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected per-IP limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "d", "10.0.0.10"); err != nil {
		t.Fatalf("other IP must pass: %v", err)
	}
}

func TestLimiterResetLogin(t *testing.T) {
	l, _ := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "bob", "")
	}
	if err := l.ResetLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("expected reset counter, got %v", err)
	}
}

func TestLimiterRefreshWindow(t *testing.T) {
	l, _ := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "sid"); err != nil {
			t.Fatalf("refresh %d: %v", i+1, err)
		}
	}
	if err := l.CheckRefresh(ctx, "sid"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRefresh(ctx, "other"); err != nil {
		t.Fatalf("other session must pass: %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	mr.Close()

	if err := l.CheckLogin(context.Background(), "x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

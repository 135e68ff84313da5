package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localMaxKeys = 100_000

// Local is an in-process limiter with the same surface as [Limiter]. Each key
// gets a token bucket holding MaxAttempts tokens that refills completely over
// one cooldown period.
type Local struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocal creates an in-process limiter. now may be nil.
func NewLocal(cfg Config, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		config:  cfg,
		now:     now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *Local) bucket(key string, max int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if ok {
		return b
	}
	if len(l.buckets) >= localMaxKeys {
		l.evictFullLocked()
	}
	if max < 1 {
		max = 1
	}
	every := rate.Inf
	if window > 0 {
		every = rate.Every(window / time.Duration(max))
	}
	b = rate.NewLimiter(every, max)
	l.buckets[key] = b
	return b
}

// evictFullLocked drops buckets that have refilled; they hold no state.
func (l *Local) evictFullLocked() {
	now := l.now()
	for k, b := range l.buckets {
		if b.TokensAt(now) >= float64(b.Burst()) {
			delete(l.buckets, k)
		}
	}
}

func (l *Local) loginKeys(identifier, ip string) []string {
	keys := []string{"l:" + normalizeIdentifier(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "li:"+ip)
	}
	return keys
}

func (l *Local) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.now()
	for _, key := range l.loginKeys(identifier, ip) {
		b := l.bucket(key, l.config.MaxLoginAttempts, l.config.LoginCooldownDuration)
		if b.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *Local) IncrementLogin(ctx context.Context, identifier, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.now()
	limited := false
	for _, key := range l.loginKeys(identifier, ip) {
		b := l.bucket(key, l.config.MaxLoginAttempts, l.config.LoginCooldownDuration)
		if !b.AllowN(now, 1) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) ResetLogin(ctx context.Context, identifier, ip string) error {
	l.mu.Lock()
	for _, key := range l.loginKeys(identifier, ip) {
		delete(l.buckets, key)
	}
	l.mu.Unlock()
	return ctx.Err()
}

func (l *Local) CheckRefresh(ctx context.Context, sessionID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := l.bucket("r:"+sessionID, l.config.MaxRefreshAttempts, l.config.RefreshCooldownDuration)
	if !b.AllowN(l.now(), 1) {
		return ErrRateLimited
	}
	return nil
}

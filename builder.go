package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	directory Directory
	keySet    *keys.Set
	keySource keys.Source
	hasher    password.Hasher

	auditSink AuditSink
	onReplay  func(ctx context.Context, subjectID, sessionID string)
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis selects the Redis session store and the shared Redis rate
// limiter. A store passed to WithStore takes precedence for sessions.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the session backend, for example a session.PostgresStore.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithDirectory(dir Directory) *Builder {
	b.directory = dir
	return b
}

// WithKeys sets the signing key set directly.
func (b *Builder) WithKeys(set *keys.Set) *Builder {
	b.keySet = set
	return b
}

// WithKeySource loads keys during Build and again on [Engine.ReloadKeys].
func (b *Builder) WithKeySource(src keys.Source) *Builder {
	b.keySource = src
	return b
}

// WithHasher replaces the argon2id hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithReplayHandler registers fn to run after a replayed refresh token has
// revoked its session. fn runs on the request goroutine.
func (b *Builder) WithReplayHandler(fn func(ctx context.Context, subjectID, sessionID string)) *Builder {
	b.onReplay = fn
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the engine.
func (b *Builder) Build() (*Engine, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a context for loading keys from the key source.
func (b *Builder) BuildContext(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("directory required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- KEYS --------
	set := b.keySet
	if set == nil {
		if b.keySource == nil {
			return nil, errors.New("signing keys required: use WithKeys or WithKeySource")
		}
		loaded, err := b.keySource.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load signing keys: %w", err)
		}
		set = loaded
	}
	codec, err := jwt.New(jwt.Config{
		AccessTTL:    cfg.JWT.AccessTTL,
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		Leeway:       cfg.JWT.Leeway,
		MaxFutureIAT: cfg.JWT.MaxFutureIAT,
	}, set)
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	opts := session.Options{
		Lifetime:   cfg.Session.Lifetime,
		ReuseGrace: cfg.Session.ReuseGrace,
	}
	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, opts)
	default:
		logger.Warn("goSession: no session store configured, sessions are kept in process memory")
		store = session.NewMemoryStore(opts)
	}

	// -------- RATE LIMITING --------
	limiterCfg := rate.Config{
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	}
	var limiter rateLimiter
	if b.redis != nil {
		limiter = rate.New(b.redis, cfg.Session.RedisPrefix, limiterCfg)
	} else {
		limiter = rate.NewLocal(limiterCfg, now)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Password.AcceptBcrypt {
			legacy, err := password.NewBcrypt(0)
			if err != nil {
				return nil, err
			}
			hasher = password.NewMulti(argon, legacy)
		} else {
			hasher = argon
		}
	}
	dummyHash, err := hasher.Hash("goSession timing equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	engine := &Engine{
		config:    cfg,
		store:     store,
		codec:     codec,
		keySource: b.keySource,
		hasher:    hasher,
		directory: b.directory,
		limiter:   limiter,
		audit:     audit.NewDispatcherWithLogger(audit.Config(cfg.Audit), b.auditSink, logger),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
		onReplay:  b.onReplay,
		dummyHash: dummyHash,
	}
	engine.flows = engine.newFlowService()

	b.built = true
	return engine, nil
}

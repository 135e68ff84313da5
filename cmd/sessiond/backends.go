package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/internal/migrate"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/session"
)

// backends holds everything the engine is built from, plus the resources to
// release on shutdown.
type backends struct {
	store     session.Store
	redis     redis.UniversalClient
	directory goSession.Directory
	keySource keys.Source

	// sweep purges expired sessions for backends that do not expire keys
	// themselves. Nil for Redis.
	sweep func(ctx context.Context, now time.Time) (int, error)

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *Config, log *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	opts := session.Options{
		Lifetime:   cfg.Auth.SessionLifetime,
		ReuseGrace: cfg.Auth.ReuseGrace,
	}

	var pool *pgxpool.Pool
	if cfg.Store.DatabaseURL != "" {
		if cfg.Store.Migrate {
			if err := migrate.Run(cfg.Store.DatabaseURL, migrate.Up); err != nil {
				return nil, err
			}
			log.Info("postgres_migrated")
		}
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err = pgxpool.New(dbCtx, cfg.Store.DatabaseURL)
		if err == nil {
			err = pool.Ping(dbCtx)
		}
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.directory = directory.NewPostgres(pool, time.Now)
		log.Info("postgres_connected")
	} else {
		log.Warn("no database_url: user accounts are kept in process memory")
		b.directory = directory.NewMemory(time.Now)
	}

	switch cfg.Store.Backend {
	case "memory":
		mem := session.NewMemoryStore(opts)
		b.store = mem
		b.sweep = func(_ context.Context, now time.Time) (int, error) {
			return mem.PurgeExpired(now), nil
		}

	case "postgres":
		pg := session.NewPostgresStore(pool, opts)
		b.store = pg
		b.sweep = pg.PurgeExpired

	case "redis":
		ropts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis_url: %w", err)
		}
		if err := b.useRedis(ctx, redis.NewClient(ropts), cfg, opts); err != nil {
			return nil, err
		}
		log.Info("redis_connected", "addr", ropts.Addr)

	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.closers = append(b.closers, mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		if err := b.useRedis(ctx, client, cfg, opts); err != nil {
			return nil, err
		}
		log.Warn("using embedded miniredis, sessions are lost on restart", "addr", mr.Addr())

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	b.keySource, err = keySource(ctx, cfg.Keys)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *backends) useRedis(ctx context.Context, client *redis.Client, cfg *Config, opts session.Options) error {
	b.closers = append(b.closers, func() { _ = client.Close() })
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	b.redis = client
	b.store = session.NewRedisStore(client, cfg.Store.RedisPrefix, opts)
	return nil
}

func keySource(ctx context.Context, cfg KeysConfig) (keys.Source, error) {
	switch cfg.Source {
	case "generate":
		k, err := keys.Generate()
		if err != nil {
			return nil, err
		}
		set, err := keys.NewSet(k)
		if err != nil {
			return nil, err
		}
		return keys.Static{Set: set}, nil
	case "hmac":
		k, err := keys.HMAC("hmac-1", []byte(cfg.HMACSecret))
		if err != nil {
			return nil, err
		}
		set, err := keys.NewSet(k)
		if err != nil {
			return nil, err
		}
		return keys.Static{Set: set}, nil
	case "files":
		return keys.Files{Paths: cfg.Files}, nil
	case "secretsmanager":
		return keys.NewSecretsManager(ctx, cfg.SecretID, cfg.Region)
	default:
		return nil, errors.New("unknown key source " + cfg.Source)
	}
}

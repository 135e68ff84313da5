package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	goSession "github.com/MrEthical07/goSession"
)

// Config is the sessiond configuration. Values come from, highest priority
// first: the --config flag, CONFIG_PATH, ./sessiond.yaml, then environment
// only. Environment variables always overlay the file, and a .env file in the
// working directory is loaded into the environment first.
type Config struct {
	Env    string      `yaml:"env" env:"ENV" env-default:"local"`
	HTTP   HTTPConfig  `yaml:"http"`
	Auth   AuthConfig  `yaml:"auth"`
	Keys   KeysConfig  `yaml:"keys"`
	Store  StoreConfig `yaml:"store"`
	Alerts AlertConfig `yaml:"alerts"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	TrustProxy      bool          `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY"`
}

func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type AuthConfig struct {
	Issuer           string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"goSession"`
	Audience         string        `yaml:"audience" env:"AUTH_AUDIENCE"`
	AccessTTL        time.Duration `yaml:"access_ttl" env:"AUTH_ACCESS_TTL" env-default:"15m"`
	SessionLifetime  time.Duration `yaml:"session_lifetime" env:"AUTH_SESSION_LIFETIME" env-default:"720h"`
	ReuseGrace       time.Duration `yaml:"reuse_grace" env:"AUTH_REUSE_GRACE" env-default:"0s"`
	ValidationMode   string        `yaml:"validation_mode" env:"AUTH_VALIDATION_MODE" env-default:"jwt_only"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env:"AUTH_MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginCooldown    time.Duration `yaml:"login_cooldown" env:"AUTH_LOGIN_COOLDOWN" env-default:"15m"`
	AcceptBcrypt     bool          `yaml:"accept_bcrypt" env:"AUTH_ACCEPT_BCRYPT"`
	AuditBuffer      int           `yaml:"audit_buffer" env:"AUTH_AUDIT_BUFFER" env-default:"1024"`
}

// KeysConfig selects where signing keys come from:
// "generate" (ephemeral, local only), "hmac", "files" or "secretsmanager".
type KeysConfig struct {
	Source         string        `yaml:"source" env:"KEYS_SOURCE" env-default:"generate"`
	HMACSecret     string        `yaml:"hmac_secret" env:"KEYS_HMAC_SECRET"`
	Files          []string      `yaml:"files" env:"KEYS_FILES" env-separator:","`
	SecretID       string        `yaml:"secret_id" env:"KEYS_SECRET_ID"`
	Region         string        `yaml:"region" env:"KEYS_REGION"`
	ReloadInterval time.Duration `yaml:"reload_interval" env:"KEYS_RELOAD_INTERVAL" env-default:"0s"`
}

// StoreConfig selects the session backend: "memory", "redis", "miniredis"
// (embedded Redis, local only) or "postgres". DatabaseURL also backs the
// user directory when set, whatever the session backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisPrefix   string        `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"gs"`
	DatabaseURL   string        `yaml:"database_url" env:"DATABASE_URL"`
	Migrate       bool          `yaml:"migrate" env:"DATABASE_MIGRATE" env-default:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"STORE_SWEEP_INTERVAL" env-default:"10m"`
}

type AlertConfig struct {
	AMQPURL  string `yaml:"amqp_url" env:"ALERTS_AMQP_URL"`
	Exchange string `yaml:"exchange" env:"ALERTS_EXCHANGE" env-default:"gosession.security"`
}

const defaultConfigFile = "sessiond.yaml"

// Load reads the configuration and validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	switch {
	case path != "":
	case os.Getenv("CONFIG_PATH") != "":
		path = os.Getenv("CONFIG_PATH")
	default:
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		// ReadConfig overlays the environment after the file.
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Keys.Source {
	case "generate":
	case "hmac":
		if len(c.Keys.HMACSecret) < 32 {
			return errors.New("keys.hmac_secret must be at least 32 bytes")
		}
	case "files":
		if len(c.Keys.Files) == 0 {
			return errors.New("keys.files must list at least one PEM file")
		}
	case "secretsmanager":
		if c.Keys.SecretID == "" {
			return errors.New("keys.secret_id is required for secretsmanager")
		}
	default:
		return fmt.Errorf("keys.source %q is not one of generate, hmac, files, secretsmanager", c.Keys.Source)
	}

	switch c.Store.Backend {
	case "memory", "miniredis":
	case "redis":
		if c.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, redis, miniredis, postgres", c.Store.Backend)
	}

	if _, err := c.Auth.mode(); err != nil {
		return err
	}
	return nil
}

func (a AuthConfig) mode() (goSession.ValidationMode, error) {
	switch a.ValidationMode {
	case "", "jwt_only":
		return goSession.ModeJWTOnly, nil
	case "strict":
		return goSession.ModeStrict, nil
	default:
		return 0, fmt.Errorf("auth.validation_mode %q is not one of jwt_only, strict", a.ValidationMode)
	}
}

// EngineConfig maps the server settings onto the library defaults.
func (c *Config) EngineConfig() (goSession.Config, error) {
	mode, err := c.Auth.mode()
	if err != nil {
		return goSession.Config{}, err
	}

	cfg := goSession.DefaultConfig()
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Audience = c.Auth.Audience
	cfg.JWT.AccessTTL = c.Auth.AccessTTL
	cfg.Session.RedisPrefix = c.Store.RedisPrefix
	cfg.Session.Lifetime = c.Auth.SessionLifetime
	cfg.Session.ReuseGrace = c.Auth.ReuseGrace
	cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Auth.LoginCooldown
	cfg.Password.AcceptBcrypt = c.Auth.AcceptBcrypt
	cfg.Password.UpgradeOnLogin = c.Auth.AcceptBcrypt
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = c.Auth.AuditBuffer
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.ValidationMode = mode

	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

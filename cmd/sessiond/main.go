// Command sessiond serves the goSession HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/alert"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := Load(configPath)
	if err != nil {
		slog.Error("config_load_failed", slog.String("err", err.Error()))
		os.Exit(2)
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("sessiond_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("service_stopped")
}

func run(cfg *Config, log *slog.Logger) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	log.Info("starting sessiond", "env", cfg.Env, "store", cfg.Store.Backend, "keys", cfg.Keys.Source)

	if cfg.Env == envProd && (cfg.Store.Backend == "memory" || cfg.Store.Backend == "miniredis" || cfg.Keys.Source == "generate") {
		return errors.New("memory, miniredis and generated keys are not allowed in prod")
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	be, err := openBackends(rootCtx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	var sink goSession.AuditSink = goSession.SlogSink{Logger: log}
	if cfg.Alerts.AMQPURL != "" {
		conn, err := alert.Dial(cfg.Alerts.AMQPURL, cfg.Alerts.Exchange)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		sink = goSession.MultiSink{sink, alert.NewAMQPSink(conn.Channel, alert.Config{Exchange: cfg.Alerts.Exchange}, log)}
		log.Info("alerts_enabled", "exchange", cfg.Alerts.Exchange)
	}

	builder := goSession.New().
		WithConfig(engineCfg).
		WithStore(be.store).
		WithDirectory(be.directory).
		WithKeySource(be.keySource).
		WithAuditSink(sink).
		WithLogger(log)
	if be.redis != nil {
		builder = builder.WithRedis(be.redis)
	}
	engine, err := builder.BuildContext(rootCtx)
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Info("security_posture",
		"alg", report.SigningAlgorithm,
		"kid", report.SigningKeyID,
		"verification_keys", report.VerificationKeys,
		"validation_mode", report.ValidationMode,
		"store", report.StoreKind,
		"login_throttle", report.LoginThrottleActive,
		"refresh_throttle", report.RefreshThrottleActive,
	)
	for _, w := range report.Warnings {
		log.Warn("security_posture_warning", "warning", w)
	}

	startSweeper(rootCtx, be, log, cfg.Store.SweepInterval)
	if cfg.Keys.ReloadInterval > 0 {
		startKeyReloader(rootCtx, engine, log, cfg.Keys.ReloadInterval)
	}

	router := httpapi.NewRouter(engine, httpapi.Options{
		Logger:     log,
		Timeout:    cfg.HTTP.RequestTimeout,
		TrustProxy: cfg.HTTP.TrustProxy,
		Metrics:    prometheus.New(engine).Handler(),
		Health:     engine.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = srv.Close()
	}
	return nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// startSweeper periodically deletes expired sessions from backends that keep
// them until asked.
func startSweeper(ctx context.Context, be *backends, log *slog.Logger, period time.Duration) {
	if be.sweep == nil || period <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := be.sweep(ctx, time.Now())
				if err != nil {
					log.Error("session_sweep_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("session_sweep", "purged", n)
				}
			}
		}
	}()
}

func startKeyReloader(ctx context.Context, engine *goSession.Engine, log *slog.Logger, period time.Duration) {
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := engine.ReloadKeys(ctx); err != nil {
					log.Error("key_reload_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"geekshub-backend-go/internal/audit"
	"geekshub-backend-go/internal/config"
	"geekshub-backend-go/internal/db"
	httpapi "geekshub-backend-go/internal/http"
	"geekshub-backend-go/internal/jobs"
	"geekshub-backend-go/internal/migrations"
	"geekshub-backend-go/internal/ratelimit"
	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/store"
	"geekshub-backend-go/internal/telemetry"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logs, err := telemetry.NewDailyFile(cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		telemetry.SetupLogger(cfg.LogFormat, cfg.LogLevel, os.Stdout)
		slog.Warn("file logging disabled", "dir", cfg.LogDir, "error", err)
	} else {
		defer logs.Close()
		telemetry.SetupLogger(cfg.LogFormat, cfg.LogLevel, io.MultiWriter(os.Stdout, logs))
	}

	if err := config.Watch(configFile, func(next config.Config) {
		telemetry.SetLevel(next.LogLevel)
	}); err != nil {
		slog.Warn("config watch disabled", "file", configFile, "error", err)
	}

	reporter := telemetry.NewReporter(cfg.RollbarToken, cfg.Environment, version)
	defer reporter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, database, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens := httpapi.NewTokenService(cfg)
	if cfg.SeedDemo {
		if err := services.SeedDemoData(ctx, st, tokens); err != nil {
			return errors.Wrap(err, "seed demo data")
		}
	}

	limiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer limiter.Close()

	shipper, err := audit.NewMultiShipper(shipperConfigs(cfg))
	if err != nil {
		return errors.Wrap(err, "audit shippers")
	}
	defer shipper.Close()

	var notifier services.Notifier = services.LogNotifier{}
	if cfg.SendgridAPIKey != "" {
		notifier = services.NewSendgridNotifier(cfg.SendgridAPIKey, cfg.MailFrom)
	}

	var jwks *services.JWKSVerifier
	if cfg.JWKSURL != "" {
		jwks, err = services.NewJWKSVerifier(cfg.JWKSURL, cfg.JWKSIssuer, cfg.JWKSRolesClaim, cfg.JWKSRefresh)
		if err != nil {
			return err
		}
		slog.Info("external identity provider enabled", "jwks", cfg.JWKSURL)
	}

	hub := services.NewHub()
	history := services.NewMetricsHistory(cfg.MetricsHistorySize)
	dispatcher := &services.Dispatcher{Shipper: shipper, Hub: hub, Notifier: notifier, Users: st}

	server := httpapi.NewServer(cfg, st, httpapi.Options{
		Publisher: dispatcher,
		Hub:       hub,
		History:   history,
		Limiter:   limiter,
		Reporter:  reporter,
		JWKS:      jwks,
	})

	scheduler := jobs.NewScheduler()
	schedule := []jobs.Job{jobs.MetricsSampler(cfg.MetricsSampleSeconds, cfg.MetricsDiskPath, history, hub)}
	if logs != nil {
		schedule = append(schedule, jobs.LogRetention(logs))
	}
	if database != nil {
		schedule = append(schedule, jobs.DBStats(database))
	}
	for _, job := range schedule {
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("listening", "addr", httpServer.Addr, "env", cfg.Environment, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}

// openStore returns the PostgreSQL store when DATABASE_URL is set and the
// in-memory store otherwise. The raw pool is returned for stats collection.
func openStore(ctx context.Context, cfg config.Config) (store.Store, *sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(store.DemoCatalog()), nil, nil
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, database); err != nil {
		_ = database.Close()
		return nil, nil, errors.Wrap(err, "migrations")
	}
	return store.NewPostgres(database, cfg.CourseCacheSize, cfg.CourseCacheTTL), database, nil
}

func openLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, error) {
	rlCfg := ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		BurstSize:         cfg.RateLimitBurst,
		CleanupInterval:   5 * time.Minute,
	}
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory(rlCfg), nil
	}
	limiter, err := ratelimit.NewRedisFromURL(ctx, cfg.RedisURL, rlCfg)
	if err != nil {
		return nil, errors.Wrap(err, "redis rate limiter")
	}
	slog.Info("rate limiting backed by redis")
	return limiter, nil
}

func shipperConfigs(cfg config.Config) []audit.ShipperConfig {
	var configs []audit.ShipperConfig
	if cfg.AuditLogFile != "" {
		configs = append(configs, audit.ShipperConfig{Type: "file", File: &audit.FileConfig{
			Path:       cfg.AuditLogFile,
			MaxSizeMB:  cfg.AuditLogMaxSizeMB,
			MaxBackups: cfg.AuditLogMaxBackups,
		}})
	}
	if cfg.AuditWebhookURL != "" {
		headers := map[string]string{}
		if cfg.AuditWebhookToken != "" {
			headers["Authorization"] = "Bearer " + cfg.AuditWebhookToken
		}
		configs = append(configs, audit.ShipperConfig{Type: "webhook", Webhook: &audit.WebhookConfig{
			URL:           cfg.AuditWebhookURL,
			Headers:       headers,
			Timeout:       10 * time.Second,
			BatchSize:     cfg.AuditWebhookBatch,
			FlushInterval: time.Duration(cfg.AuditWebhookFlushMs) * time.Millisecond,
		}})
	}
	return configs
}

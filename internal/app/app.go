// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/garyellow/weamind-linebot-go/internal/announcement"
	"github.com/garyellow/weamind-linebot-go/internal/bot"
	"github.com/garyellow/weamind-linebot-go/internal/buildinfo"
	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/forecast"
	"github.com/garyellow/weamind-linebot-go/internal/lineauth"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/location"
	"github.com/garyellow/weamind-linebot-go/internal/lock"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
	"github.com/garyellow/weamind-linebot-go/internal/modules/weather"
	"github.com/garyellow/weamind-linebot-go/internal/r2client"
	"github.com/garyellow/weamind-linebot-go/internal/ratelimit"
	"github.com/garyellow/weamind-linebot-go/internal/sentry"
	"github.com/garyellow/weamind-linebot-go/internal/snapshot"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
	"github.com/garyellow/weamind-linebot-go/internal/webhook"
)

const serviceName = "weamind-linebot-go"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	snapshots      *snapshot.Manager // nil when R2 is disabled
	redisClient    *redis.Client     // nil when the processing lock is disabled
	userLimiter    *ratelimit.KeyedLimiter
	webhookHandler *webhook.Handler
	users          *usersHandler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := newLogger(cfg)

	// Package-level slog.*Context() calls also get the event and user fields.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.VersionOrDev()).Info("Initializing application...")

	if cfg.SentryEnabled {
		release := cfg.SentryRelease
		if release == "" {
			release = buildinfo.Release()
		}
		if err := sentry.Initialize(sentry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          release,
			SampleRate:       cfg.SentrySampleRate,
			TracesSampleRate: cfg.SentryTracesSampleRate,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed, continuing without error reporting")
		} else {
			log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
		}
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	app := &Application{
		cfg:      cfg,
		logger:   log,
		db:       db,
		metrics:  m,
		registry: registry,
	}

	if cfg.R2Enabled {
		if err := app.initSnapshots(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	divisions := location.DefaultRegistry(log.Logger)
	resolver := location.NewResolver(db, divisions, location.WithMaxDistanceKm(cfg.Bot.NearestMaxDistanceKm))

	var locker *lock.Locker
	if cfg.ProcessingLockEnabled() {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			// The lock is fail-open; run without it rather than refuse to start.
			log.WithError(err).Warn("Redis unavailable, processing lock disabled")
		} else {
			app.redisClient = client
			locker = lock.New(client, cfg.Bot.ProcessingLockTTL, log, m)
			log.WithField("ttl", cfg.Bot.ProcessingLockTTL.String()).Info("Processing lock enabled")
		}
	}

	verifier := lineauth.NewVerifier(lineauth.Config{
		ChannelID:       cfg.LineLoginChannelID,
		VerifySignature: cfg.IDTokenVerifySignature,
	}, log, m)

	sender := lineutil.NewSender(weather.SenderName, "")
	weatherHandler := weather.NewHandler(weather.Config{
		Resolver:           resolver,
		Users:              db,
		Forecasts:          forecast.NewService(db, cfg.Bot.ForecastWindows),
		Locker:             locker,
		Announcements:      announcement.NewService(cfg.AnnouncementsPath, cfg.AnnouncementsPageURL(), announcement.DefaultLimit),
		Metrics:            m,
		Logger:             log,
		Sender:             sender,
		BaseURL:            cfg.BaseURL,
		LIFFLocationURL:    cfg.LIFFLocationURL(),
		RecentQueriesLimit: cfg.Bot.RecentQueriesLimit,
	})

	botRegistry := bot.NewRegistry()
	botRegistry.Register(weatherHandler)

	app.userLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:       "user",
		Burst:      cfg.Bot.UserRateBurst,
		RefillRate: cfg.Bot.UserRateRefill,
		SweepEvery: config.RateLimiterCleanupInterval,
		Metrics:    m,
	})

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:    botRegistry,
		UserLimiter: app.userLimiter,
		Sender:      sender,
		Logger:      log,
		BotConfig:   &cfg.Bot,
	})

	app.webhookHandler, err = webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		BotConfig:     &cfg.Bot,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
	})
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("webhook: %w", err)
	}

	app.users = newUsersHandler(verifier, resolver, db, log)

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.Options{}
	if cfg.BetterStackEnabled {
		opts.BetterStackToken = cfg.BetterStackToken
		opts.BetterStackEndpoint = cfg.BetterStackEndpoint
	}
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, opts).WithField("service", serviceName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	if opts.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}
	return log
}

// initSnapshots connects to R2 and imports the published catalog before the
// server starts. A missing snapshot is not fatal; the poller picks it up later.
func (a *Application) initSnapshots(ctx context.Context) error {
	client, err := r2client.New(ctx, r2client.Config{
		AccountID:   a.cfg.R2AccountID,
		AccessKeyID: a.cfg.R2AccessKeyID,
		SecretKey:   a.cfg.R2SecretAccessKey,
		BucketName:  a.cfg.R2BucketName,
	})
	if err != nil {
		return fmt.Errorf("r2 client: %w", err)
	}

	a.snapshots = snapshot.New(client, snapshot.Config{
		SnapshotKey:  a.cfg.R2SnapshotKey,
		PollInterval: a.cfg.R2SnapshotPollInterval,
		TempDir:      a.cfg.DataDir,
	}, a.logger, a.metrics)

	syncCtx, cancel := context.WithTimeout(ctx, config.SnapshotDownload)
	defer cancel()

	status, err := a.snapshots.Sync(syncCtx, a.db)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		a.logger.WithField("snapshot_key", a.cfg.R2SnapshotKey).Warn("No catalog snapshot published yet")
	case err != nil:
		a.logger.WithError(err).Warn("Initial snapshot sync failed, serving the local catalog")
	default:
		a.logger.WithField("status", status).Info("Initial snapshot sync complete")
	}
	return nil
}

// allowedOrigin returns the scheme and host of the public base URL.
func (a *Application) allowedOrigin() string {
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence:
//  1. ctx is canceled (SIGINT/SIGTERM in cmd/server) or the listener fails
//  2. Cancel context, stop the snapshot poller and wait for background jobs
//  3. Stop the HTTP server and drain in-flight webhook events
//  4. Close resources (Redis, database, rate limiters, log shipping)
//
// Jobs finish before the database closes so a running cleanup or import never
// sees "sql: database is closed".
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		a.logger.WithError(runErr).Error("HTTP server stopped unexpectedly")
	}

	cancel()
	if a.snapshots != nil {
		a.snapshots.Stop()
	}

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	a.shutdown()
	return runErr
}

// startHTTPServer starts the HTTP server in a goroutine. A listen failure is
// delivered on the returned channel.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// shutdown performs graceful shutdown of HTTP server and resources.
// It must run after background jobs have stopped.
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	a.closeResources()

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Logger shutdown timed out", "error", err)
	}
}

func (a *Application) closeResources() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "redis").Error("Component close error")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
	if a.userLimiter != nil {
		a.userLimiter.Stop()
	}
}

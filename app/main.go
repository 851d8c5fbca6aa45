package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/job-comb/app/api"
	"github.com/lysyi3m/job-comb/app/cache"
	"github.com/lysyi3m/job-comb/app/cfg"
	"github.com/lysyi3m/job-comb/app/database"
	"github.com/lysyi3m/job-comb/app/feed"
	"github.com/lysyi3m/job-comb/app/fetch"
	"github.com/lysyi3m/job-comb/app/metrics"
	"github.com/lysyi3m/job-comb/app/notify"
	"github.com/lysyi3m/job-comb/app/tasks"
)

const sweepHook = "import_all_feeds"

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Job Comb", "version", appCfg.Version, "feeds_dir", appCfg.FeedsDir)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	payloadCache, err := newPayloadCache(ctx, appCfg.RedisURL)
	if err != nil {
		return err
	}
	defer payloadCache.Close()

	metrics.Register(prometheus.DefaultRegisterer)

	feedRepo := database.NewFeedRepository(db)
	jobRepo := database.NewJobRepository(db)
	runRepo := database.NewRunRepository(db)

	fetcher := fetch.NewFetcher(nil, nil, payloadCache, fetch.Options{
		UserAgent: appCfg.UserAgent,
		Timeout:   appCfg.Timeout,
		CacheTTL:  appCfg.CacheDuration,
	})

	registry := tasks.NewRegistry()

	importer := tasks.NewImporter(tasks.Settings{
		ImportLimit:          appCfg.ImportLimit,
		AgeFilterDays:        appCfg.AgeFilterDays,
		MinDescriptionLength: appCfg.MinDescriptionLength,
		DeduplicationEnabled: appCfg.DedupEnabled,
		AutoTaxonomies:       appCfg.AutoTaxonomies,
		Timeout:              appCfg.Timeout,
		RequestDelay:         appCfg.RequestDelay,
		MaxFailures:          appCfg.MaxFailures,
		UserAgent:            appCfg.UserAgent,
	}, configCache, feedRepo, jobRepo, runRepo, fetcher, registry, newNotifier(appCfg))

	if err := importer.SyncFeeds(ctx); err != nil {
		return fmt.Errorf("failed to sync feeds: %w", err)
	}

	if appCfg.SweepSchedule != "" {
		err := registry.Register(sweepHook, appCfg.SweepSchedule, func() {
			if _, err := importer.Sweep(ctx); err != nil {
				slog.Error("Scheduled sweep failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sweep: %w", err)
		}
		slog.Info("Sweep scheduled", "interval", appCfg.SweepSchedule)
	}

	registry.Start()
	slog.Info("Scheduler started", "hooks", len(registry.Hooks()))

	generator := feed.NewGenerator(appCfg.BaseUrl, appCfg.Version)
	handler := api.NewHandler(configCache, feedRepo, jobRepo, runRepo, generator, importer, registry, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	if err := registry.StopWithTimeout(shutdownCtx); err != nil {
		slog.Warn("Scheduler did not stop in time", "error", err)
	} else {
		slog.Info("Scheduler stopped")
	}

	slog.Info("Job Comb shutdown complete")
	return nil
}

func newPayloadCache(ctx context.Context, redisURL string) (cache.Cache, error) {
	if redisURL == "" {
		slog.Info("Using in-process payload cache")
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return redisCache, nil
}

func newNotifier(appCfg *cfg.Cfg) tasks.Notifier {
	if !appCfg.NotificationsEnabled() {
		slog.Info("Import notifications disabled")
		return nil
	}

	var sender notify.Sender
	if appCfg.SendGridAPIKey != "" {
		sender = notify.NewSendGridSender(appCfg.SendGridAPIKey, appCfg.SMTPFrom, appCfg.SiteName)
		slog.Info("Import notifications enabled", "transport", "sendgrid", "recipient", appCfg.NotificationEmail)
	} else {
		sender = notify.NewSMTPSender(appCfg.SMTPAddr, appCfg.SMTPFrom, appCfg.SMTPUser, appCfg.SMTPPassword)
		slog.Info("Import notifications enabled", "transport", "smtp", "recipient", appCfg.NotificationEmail)
	}

	return notify.NewEmailNotifier(sender, appCfg.NotificationEmail, appCfg.SiteName)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedloop/feedloop/app/api"
	"github.com/feedloop/feedloop/app/cfg"
	"github.com/feedloop/feedloop/app/database"
	"github.com/feedloop/feedloop/app/events"
	"github.com/feedloop/feedloop/app/feed"
	"github.com/feedloop/feedloop/app/jobs"
	"github.com/feedloop/feedloop/app/refresh"
	"github.com/feedloop/feedloop/app/seeds"
	"github.com/feedloop/feedloop/app/settings"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested, exit gracefully.
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting feedloop server", "version", cfg.GetVersion())

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	if dirty {
		slog.Warn("Database schema is dirty", "version", version)
	} else {
		slog.Info("Database migrations applied", "version", version)
	}

	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	subRepo := database.NewSubscriptionRepository(db)
	categoryRepo := database.NewCategoryRepository(db)
	prefRepo := database.NewPreferenceRepository(db)
	runRepo := database.NewJobRunRepository(db)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	seedCount, err := seeds.NewLoader(appCfg.SeedsDir, sourceRepo).Run(startupCtx)
	startupCancel()
	if err != nil {
		slog.Error("Failed to load seeds", "dir", appCfg.SeedsDir, "error", err)
		os.Exit(1)
	}
	if seedCount > 0 {
		slog.Info("Seeds loaded", "dir", appCfg.SeedsDir, "count", seedCount)
	}

	bus := events.NewBus()
	publisher := events.NewPublisher(bus)
	embeddingWorker := events.NewEmbeddingWorker(bus, events.NoopEmbeddingClient{}, itemRepo)
	notificationLogger := events.NewNotificationLogger(bus)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go func() {
		if err := embeddingWorker.Run(workerCtx); err != nil {
			slog.Error("Embedding worker stopped", "error", err)
		}
	}()
	go func() {
		if err := notificationLogger.Run(workerCtx); err != nil {
			slog.Error("Notification logger stopped", "error", err)
		}
	}()

	resolver := settings.NewResolver(settings.Defaults{
		RefreshInterval: time.Duration(appCfg.DefaultRefreshInterval) * time.Minute,
		MaxItems:        appCfg.DefaultMaxItems,
		MaxItemAge:      time.Duration(appCfg.DefaultMaxItemAge) * 24 * time.Hour,
	})

	fetcher := feed.NewFetcher(appCfg.UserAgent, time.Duration(appCfg.FetchTimeout)*time.Second)
	parser := feed.NewParser()
	extractor := feed.NewContentExtractor()

	cleaner := refresh.NewCleaner(sourceRepo, subRepo, itemRepo, resolver)
	pipeline := refresh.NewPipeline(sourceRepo, itemRepo, subRepo, resolver,
		fetcher, parser, extractor, cleaner, publisher, appCfg.WorkerCount)

	var lockProvider jobs.LockProvider
	if appCfg.RedisAddr != "" {
		redisLocks, err := jobs.NewRedisLockProvider(appCfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to set up Redis job locks", "addr", appCfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisLocks.Close()
		lockProvider = redisLocks
		slog.Info("Job locks backed by Redis", "addr", appCfg.RedisAddr)
	} else {
		lockProvider = jobs.NewMemoryLockProvider()
	}

	executor := jobs.NewExecutor(runRepo, lockProvider, time.Duration(appCfg.StuckRunThreshold)*time.Minute)

	scheduler := jobs.NewScheduler(executor, runRepo, jobs.SchedulerOptions{
		Enabled: appCfg.EnableScheduledJobs,
	})
	scheduler.Register(jobs.JobRefresh, appCfg.RefreshSchedule, pipeline.RunRefreshJob)
	scheduler.Register(jobs.JobCleanup, appCfg.CleanupSchedule, cleaner.RunCleanupJob)

	if err := scheduler.Initialize(); err != nil {
		slog.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(sourceRepo, itemRepo, subRepo, categoryRepo, prefRepo, runRepo,
		resolver, scheduler, pipeline, executor)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Server started successfully")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Stop triggering new runs first, then wait for in-flight ones.
	scheduler.Stop()
	executor.Stop()
	workerCancel()

	slog.Info("Shutdown complete")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/infrastructure/cache"
	"github.com/veloxpos/audit-engine/internal/infrastructure/config"
	"github.com/veloxpos/audit-engine/internal/infrastructure/database"
	"github.com/veloxpos/audit-engine/internal/infrastructure/telemetry"
	"github.com/veloxpos/audit-engine/internal/service/detection"
	"github.com/veloxpos/audit-engine/internal/service/maintenance"
	"github.com/veloxpos/audit-engine/internal/service/security"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		fullRun    = flag.Bool("full", false, "Run one full maintenance pass and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *fullRun); err != nil {
		logger.Fatal("engine failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, fullRun bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting audit engine",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment))

	// Must be installed before any service creates its meter, otherwise
	// those instruments bind to the global no-op provider.
	metrics, err := telemetry.SetupMetrics("audit-engine", cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("setting up metrics: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("meter provider shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	recordStore := database.NewRecordStore(pool, 0, logger)
	taskStore := database.NewTaskStore(pool)

	var reportCache security.ReportCache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		reportCache = cache.NewReportCache(client, cfg.Security.ReportCacheTTL, logger)
	}

	detector := detection.NewDetector(cfg.Detection)
	detectionSvc := detection.NewService(recordStore, detector, logger)
	reportSvc := security.NewReportService(recordStore, detectionSvc, security.NewScorer(), reportCache, logger)

	scheduler, err := maintenance.NewService(taskStore, recordStore, maintenance.Config{
		StoreTimeout:        cfg.Maintenance.StoreTimeout,
		ReportWindow:        cfg.Maintenance.ReportWindow,
		StoreCallsPerSecond: float64(cfg.Maintenance.StoreCallsPerSecond),
		StoreBurst:          cfg.Maintenance.StoreBurst,
	}, logger)
	if err != nil {
		return fmt.Errorf("building maintenance service: %w", err)
	}
	scheduler.SetReportGenerator(reportSvc)

	if fullRun {
		result, err := scheduler.RunFullMaintenance(ctx)
		if err != nil {
			return fmt.Errorf("full maintenance: %w", err)
		}
		logger.Info("full maintenance pass finished",
			zap.Bool("success", result.Success),
			zap.String("summary", result.Summary))
		return nil
	}

	if err := scheduler.EnsureDefaultTasks(ctx); err != nil {
		return fmt.Errorf("seeding default tasks: %w", err)
	}

	metricsServer := startMetricsServer(cfg.Server.MetricsPort, pool, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.Maintenance.TickInterval)
	defer ticker.Stop()

	logger.Info("scheduler loop started",
		zap.Duration("tick_interval", cfg.Maintenance.TickInterval))

	for {
		select {
		case <-ticker.C:
			results, err := scheduler.RunDueMaintenance(ctx)
			if err != nil {
				logger.Error("maintenance tick failed", zap.Error(err))
				recordTick(false, nil)
				continue
			}
			recordTick(true, results)
		case <-ctx.Done():
			logger.Info("shutting down gracefully")
			return nil
		}
	}
}

func startMetricsServer(port int, pool healthChecker, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics listener started", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return server
}

type healthChecker interface {
	Ping(ctx context.Context) error
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/erichter2018/rvutrack/internal/adapters/http/api"
	"github.com/erichter2018/rvutrack/internal/adapters/http/swagger"
	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	service "github.com/erichter2018/rvutrack/internal/app"
	"github.com/erichter2018/rvutrack/internal/config"
	"github.com/erichter2018/rvutrack/internal/domain/stats"
	"github.com/erichter2018/rvutrack/pkg/logger"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// the system metrics updater collects its own.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to open store: " + err.Error() + "\n")
		return
	}

	svc := service.New(
		service.WithLogger(log),
		service.WithStore(store),
		service.WithMinStudyDuration(time.Duration(cfg.MinStudySeconds)*time.Second),
		service.WithPlaceholderMarkers(cfg.PlaceholderMarkers),
		service.WithAccessionSalt(cfg.AccessionSalt),
		service.WithGroupWindow(time.Duration(cfg.GroupWindowSeconds)*time.Second),
		service.WithTempFoldCutoff(cfg.TempFoldCutoffRVU),
		service.WithPaceEpsilon(cfg.PaceEpsilonRVU),
		service.WithGoalSpan(time.Duration(cfg.GoalSpanHours*float64(time.Hour))),
		service.WithCompensation(stats.CompensationConfig{
			RatePerRVU:       cfg.CompRatePerRVU,
			BonusRatePerRVU:  cfg.CompBonusRatePerRVU,
			MonthlyTargetRVU: cfg.CompMonthlyTargetRVU,
		}),
		service.WithQueueSize(cfg.PersistQueueSize),
		service.WithWriterCount(cfg.WriterCount),
		service.WithPersistRetry(
			cfg.PersistMaxAttempts,
			time.Duration(cfg.PersistBackoffBaseMS)*time.Millisecond,
			time.Duration(cfg.PersistBackoffMaxMS)*time.Millisecond,
		),
		service.WithRulesFile(cfg.RulesPath, cfg.RulesHotReload),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}

	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	// Stop the service after the listener so in-flight requests finish
	// against a live pipeline. Stop flushes the open study and drains the
	// write queue.
	svc.Stop(shutdownCtx)
	log.Info(ctx, "server stopped")
}

// openStore picks the persistence backend: SQLite when a path is configured,
// otherwise in-memory.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StorePath == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewSQLiteStore(ctx, cfg.StorePath)
}

// startSystemMetricsUpdater periodically refreshes process-level gauges.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

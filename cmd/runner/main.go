package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightmesh/querycore/config"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/email"
	"github.com/brightmesh/querycore/internal/health"
	"github.com/brightmesh/querycore/internal/infrastructure/postgres"
	ctxlog "github.com/brightmesh/querycore/internal/log"
	"github.com/brightmesh/querycore/internal/metrics"
	"github.com/brightmesh/querycore/internal/querylimiter"
	"github.com/brightmesh/querycore/internal/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	cryptoManager, err := crypto.NewManager(cfg.EncryptionKey)
	if err != nil {
		stop()
		log.Fatalf("crypto: %v", err)
	}

	runRepo := postgres.NewRunRepository(pool)
	datasourceRepo := postgres.NewDatasourceRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	userRepo := postgres.NewUserRepository(pool)

	notifier := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	limiter := querylimiter.New(querylimiter.Limits{
		MaxConcurrentPerOrg: cfg.MaxConcurrentQueriesPerOrg,
		MaxConcurrentGlobal: cfg.MaxConcurrentQueriesGlobal,
	})

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	worker := runner.NewWorker(
		runRepo, datasourceRepo, scheduleRepo, userRepo,
		cryptoManager, limiter, notifier,
		time.Duration(cfg.RunnerPollIntervalSec)*time.Second,
		cfg.RunnerConcurrency,
		logger,
	)
	go worker.Start(ctx)

	reaper := runner.NewReaper(
		runRepo, scheduleRepo, userRepo, notifier, logger,
		time.Duration(cfg.RunnerReapIntervalSec)*time.Second,
		time.Duration(cfg.RunnerReapGraceSec)*time.Second,
	)
	go reaper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux}
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("runner shut down")
	metrics.ProcessShutdownsTotal.Inc()
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

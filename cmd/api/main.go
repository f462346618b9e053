package main

import (
	"context"
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

	"github.com/brightmesh/querycore/config"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/health"
	"github.com/brightmesh/querycore/internal/infrastructure/postgres"
	ctxlog "github.com/brightmesh/querycore/internal/log"
	"github.com/brightmesh/querycore/internal/metrics"
	"github.com/brightmesh/querycore/internal/sqlvalidator"
	httptransport "github.com/brightmesh/querycore/internal/transport/http"
	"github.com/brightmesh/querycore/internal/transport/http/handler"
	"github.com/brightmesh/querycore/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	cryptoManager, err := crypto.NewManager(cfg.EncryptionKey)
	if err != nil {
		stop()
		log.Fatalf("crypto: %v", err)
	}
	validator := sqlvalidator.New()
	jwtKey := []byte(cfg.JWTSecret)
	jwtTTL := time.Duration(cfg.JWTTTLHours) * time.Hour

	orgRepo := postgres.NewOrganizationRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	dsRepo := postgres.NewDatasourceRepository(pool)
	queryRepo := postgres.NewQueryRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	vizRepo := postgres.NewVisualizationRepository(pool)
	dashRepo := postgres.NewDashboardRepository(pool)
	canvasRepo := postgres.NewCanvasRepository(pool)

	authUsecase := usecase.NewAuthUsecase(orgRepo, userRepo, jwtKey, jwtTTL)
	dsUsecase := usecase.NewDatasourceUsecase(dsRepo, cryptoManager)
	queryUsecase := usecase.NewQueryUsecase(queryRepo, validator)
	runUsecase := usecase.NewRunUsecase(runRepo, queryRepo, dsRepo, validator)
	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, queryRepo)
	vizUsecase := usecase.NewVisualizationUsecase(vizRepo, queryRepo)
	dashUsecase := usecase.NewDashboardUsecase(dashRepo, vizRepo)
	canvasUsecase := usecase.NewCanvasUsecase(canvasRepo)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	handlers := httptransport.Handlers{
		Health:        handler.NewHealthHandler(checker),
		Auth:          handler.NewAuthHandler(authUsecase, logger),
		Datasource:    handler.NewDatasourceHandler(dsUsecase, logger),
		Query:         handler.NewQueryHandler(queryUsecase, logger),
		Run:           handler.NewRunHandler(runUsecase, logger),
		Schedule:      handler.NewScheduleHandler(scheduleUsecase, logger),
		Visualization: handler.NewVisualizationHandler(vizUsecase, logger),
		Dashboard:     handler.NewDashboardHandler(dashUsecase, logger),
		Canvas:        handler.NewCanvasHandler(canvasUsecase, logger),
	}

	srv := http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: httptransport.NewRouter(handlers, userRepo, jwtKey, logger),
	}

	go func() {
		logger.Info("api server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	metrics.ProcessShutdownsTotal.Inc()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	var inner slog.Handler
	if cfg.Env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

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

	"github.com/gin-gonic/gin"
	"github.com/hqc-labs/huddle-delivery/config"
	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/health"
	"github.com/hqc-labs/huddle-delivery/internal/infrastructure/postgres"
	ctxlog "github.com/hqc-labs/huddle-delivery/internal/log"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/recurrence"
	httptransport "github.com/hqc-labs/huddle-delivery/internal/transport/http"
	"github.com/hqc-labs/huddle-delivery/internal/transport/http/handler"
	"github.com/hqc-labs/huddle-delivery/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	sequenceRepo := postgres.NewSequenceRepository(pool, logger)
	calc := recurrence.NewCalculator(recurrence.StandardCronEvaluator{})

	scheduleUsecase := usecase.NewScheduleUsecase(
		scheduleRepo,
		sequenceRepo,
		usecase.AllowAllAuthorizer{},
		calc,
		clock.System,
		logger,
	)
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, scheduleHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
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
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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

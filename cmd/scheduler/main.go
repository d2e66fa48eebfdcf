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

	"github.com/hqc-labs/huddle-delivery/config"
	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/health"
	"github.com/hqc-labs/huddle-delivery/internal/infrastructure/postgres"
	ctxlog "github.com/hqc-labs/huddle-delivery/internal/log"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/notify"
	"github.com/hqc-labs/huddle-delivery/internal/recurrence"
	"github.com/hqc-labs/huddle-delivery/internal/scheduler"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
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

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	scheduleRepo := postgres.NewScheduleRepository(pool, logger)
	sequenceRepo := postgres.NewSequenceRepository(pool, logger)

	notifier := notify.NewNotifier(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertEmail, logger)
	calc := recurrence.NewCalculator(recurrence.StandardCronEvaluator{})

	executor := scheduler.NewExecutor(
		scheduleRepo,
		sequenceRepo,
		sequenceRepo, // publisher
		sequenceRepo, // target resolver
		notifier,
		calc,
		clock.System,
		logger,
		time.Duration(cfg.ExecTimeoutSec)*time.Second,
	)

	poller := scheduler.NewPoller(
		scheduleRepo,
		executor,
		logger,
		clock.System,
		time.Duration(cfg.PollIntervalSec)*time.Second,
		cfg.WorkerCount,
	)
	go poller.Start(ctx)

	sweep := scheduler.NewReminderSweep(
		scheduleRepo,
		sequenceRepo,
		sequenceRepo,
		notifier,
		logger,
		clock.System,
		time.Duration(cfg.ReminderIntervalSec)*time.Second,
	)
	go sweep.Start(ctx)

	janitor := scheduler.NewJanitor(
		scheduleRepo,
		logger,
		clock.System,
		time.Duration(cfg.JanitorIntervalSec)*time.Second,
		time.Duration(cfg.ClaimTimeoutSec)*time.Second,
	)
	go janitor.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
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

	logger.Info("scheduler shut down")
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

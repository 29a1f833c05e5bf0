package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/ride-progress/internal/bootstrap"
	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/observability/logging"
	"github.com/kirillkom/ride-progress/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Events: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Saved snapshots get their spoken review generated ahead of the first
	// request so playback starts from the stored copy.
	handler := func(handlerCtx context.Context, event domain.SnapshotEvent) error {
		workerMetrics.ObserveEventLag(serviceName, time.Since(event.OccurredAt))
		if event.Type != domain.SnapshotSaved {
			return nil
		}

		started := time.Now()
		workerMetrics.StartReview()
		sess := domain.NewSession(event.UserID, "")
		_, err := app.Reviews.Review(handlerCtx, sess, event.SnapshotID)
		workerMetrics.FinishReview(serviceName, time.Since(started), err)
		if err != nil {
			return err
		}
		slog.Info("review_pregenerated", "snapshot_id", event.SnapshotID, "user_id", sess.UserID)
		return nil
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	if err := app.Bus.SubscribeSnapshotEvents(ctx, handler); err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/ride-progress/internal/adapters/http"
	"github.com/kirillkom/ride-progress/internal/bootstrap"
	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/observability/logging"
	"github.com/kirillkom/ride-progress/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Events:   cfg.EventsEnabled,
		Upstream: httpMetrics,
		Imports:  httpMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Batches.Run(ctx)

	handler, err := httpadapter.NewRouter(cfg, httpadapter.Services{
		Importer:   app.Importer,
		Batches:    app.Batches,
		Catalog:    app.Timeline,
		Comparison: app.Compare,
		Trends:     app.Trends,
		Archive:    app.Archive,
		Reviews:    app.Reviews,
		Storage:    app.Storage,
		Signer:     app.Signer,
		Metrics:    httpMetrics,
	}).Handler()
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "max_connections", cfg.MaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}

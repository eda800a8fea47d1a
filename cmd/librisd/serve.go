package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/libris-io/libris/internal/config"
	"github.com/libris-io/libris/internal/httpapi"
	"github.com/libris-io/libris/internal/obs"
	"github.com/libris-io/libris/internal/worker"
	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/oteladapters"
	"github.com/libris-io/libris/libstore/postgresengine"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the lending API server",
		Long: `Starts the HTTP API, the reservation expiry monitor, and the
/metrics scrape endpoint. Shuts down gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, storeOptions, shutdownOtel, err := buildObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownOtel()

	pool, err := config.NewPGXPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := postgresengine.NewStoreFromPGXPool(pool, storeOptions...)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()

	server := httpapi.NewServer(store,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
		httpapi.WithPolicy(cfg.LendingPolicy()),
	)

	monitor := worker.NewExpiryMonitor(store,
		worker.WithInterval(cfg.Worker.ExpirySweepInterval),
		worker.WithLogger(logger),
		worker.WithExpiredCounter(metrics.ReservationsExpired),
	)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go monitor.Run(workerCtx)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "lending API listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.InfoContext(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		stopWorker()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return nil

	case err := <-serverErr:
		return err
	}
}

// buildObservability wires the logger and the store-level collectors. With
// OTLP disabled, logs go to stdout and the store runs without collectors.
func buildObservability(ctx context.Context, cfg config.Config) (
	libstore.ContextualLogger, []postgresengine.Option, func(), error) {

	if !cfg.Observability.Enabled {
		logger := oteladapters.NewSlogBridgeLoggerWithHandler(
			slog.NewJSONHandler(os.Stdout, nil))

		return logger, storeOptions(cfg, logger), func() {}, nil
	}

	providers, err := config.NewObservabilityProviders(ctx, cfg.Observability, version)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := oteladapters.NewSlogBridgeLogger("librisd")
	options := append(storeOptions(cfg, logger),
		postgresengine.WithMetrics(oteladapters.NewMetricsCollector(
			otel.Meter("libris.store"))),
		postgresengine.WithTracing(oteladapters.NewTracingCollector(
			otel.Tracer("libris.store"))),
	)

	shutdown := func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.ErrorContext(context.Background(), "otel shutdown failed", "error", err.Error())
		}
	}

	return logger, options, shutdown, nil
}

func storeOptions(cfg config.Config, logger libstore.ContextualLogger) []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(logger),
	}

	if cfg.Postgres.TablePrefix != "" {
		options = append(options, postgresengine.WithTablePrefix(cfg.Postgres.TablePrefix))
	}

	return options
}

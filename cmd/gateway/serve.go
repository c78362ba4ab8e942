package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/chargecore/internal/metrics"
	"github.com/DanielPopoola/chargecore/internal/tracing"
	"github.com/DanielPopoola/chargecore/internal/worker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctxOrBackground(ctx), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	logger.Info("starting gateway service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"queue", cfg.Queue.Backend,
		"idempotency", cfg.Idempotency.Backend,
	)

	if migrate {
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	shutdownTracing, err := tracing.Setup(cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	metrics.Setup(cfg.Metrics, logger)

	charges := services.NewChargeService(a.charges, a.accounts, logger)
	authorisation := services.NewAuthorisationOrchestrator(
		a.charges, a.accounts, a.registry, a.bins, a.idempotency, a.queue, a.machine, logger,
	)
	capture := services.NewCaptureService(a.charges, a.queue, a.machine, logger)
	cancel := services.NewCancelService(a.charges, a.accounts, a.registry, a.machine, logger)
	refunds := services.NewRefundService(a.charges, a.refunds, a.accounts, a.registry, logger)
	notifications := services.NewNotificationIngestor(a.charges, a.accounts, a.registry, a.machine, logger)
	reconciliation := a.reconciliation()
	processor := services.NewCaptureProcessor(
		a.charges, a.accounts, a.registry, a.queue, a.machine, a.retries, cfg.Capture.ClaimTimeout, logger,
	)

	h := handlers.NewHandlers(charges, authorisation, capture, cancel, refunds, notifications, reconciliation, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handlers.NewRouter(h, a.db, cfg.Server.RequestTimeout, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	run := func(start func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(workerCtx)
		}()
	}

	captureWorker := worker.NewCaptureWorker(a.queue, processor, cfg.Capture.PoolSize, logger)
	run(func(ctx context.Context) {
		if err := captureWorker.Start(ctx); err != nil {
			logger.Error("capture worker stopped", "error", err)
		}
	})
	run(worker.NewCapturePoller(
		a.charges, a.queue, a.retries, cfg.Capture.PollInterval, cfg.Capture.GracePeriod, cfg.Capture.BatchSize, logger,
	).Start)
	run(worker.NewExpirationWorker(
		cancel, cfg.Expiry.Window, cfg.Expiry.Interval, cfg.Expiry.BatchSize, logger,
	).Start)
	run(worker.NewReconciler(
		reconciliation, cfg.Reconcile.Interval, cfg.Reconcile.StalledAge, cfg.Reconcile.BatchSize, logger,
	).Start)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancelWorkers()
	wg.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("server exited")
	return err
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

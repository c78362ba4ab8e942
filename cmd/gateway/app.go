package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/config"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/persistence/bolt"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/queue"
	"github.com/DanielPopoola/chargecore/internal/logging"
	"github.com/DanielPopoola/chargecore/internal/policy"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *postgres.DB
	registry *gateway.Registry
	queue    application.CaptureQueue
	retries  *policy.CaptureRetryPolicy

	charges     *postgres.ChargeRepository
	accounts    *postgres.AccountRepository
	refunds     *postgres.RefundRepository
	bins        *postgres.BinRepository
	idempotency application.IdempotencyStore
	machine     *services.ChargeStateMachine

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(cfg.Logger)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		charges:  postgres.NewChargeRepository(db),
		accounts: postgres.NewAccountRepository(db),
		refunds:  postgres.NewRefundRepository(db),
		bins:     postgres.NewBinRepository(db),
	}
	a.closers = append(a.closers, func() error { db.Close(); return nil })

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	registry, err := gateway.NewFromConfig(a.cfg.Gateway, a.cfg.Notifications)
	if err != nil {
		return fmt.Errorf("build gateway registry: %w", err)
	}
	a.registry = registry

	a.retries, err = policy.NewCaptureRetryPolicy(
		a.cfg.Capture.RetryRule,
		a.cfg.Capture.MaxRetries,
		a.cfg.Capture.BaseBackoff,
		a.cfg.Capture.MaxBackoff,
	)
	if err != nil {
		return fmt.Errorf("build capture retry policy: %w", err)
	}

	switch a.cfg.Idempotency.Backend {
	case "bolt":
		store, err := bolt.Open(a.cfg.Idempotency.BoltPath)
		if err != nil {
			return fmt.Errorf("open idempotency store: %w", err)
		}
		a.idempotency = store
		a.closers = append(a.closers, store.Close)
	default:
		a.idempotency = postgres.NewIdempotencyRepository(a.db)
	}

	switch a.cfg.Queue.Backend {
	case "kafka":
		if len(a.cfg.Queue.Brokers) == 0 {
			return errors.New("queue.brokers is required for the kafka backend")
		}
		a.queue = queue.NewKafkaQueue(a.cfg.Queue.Brokers, a.cfg.Queue.Topic, a.cfg.Queue.GroupID, a.logger)
	default:
		a.queue = queue.NewMemoryQueue()
	}
	a.closers = append(a.closers, a.queue.Close)

	a.machine = services.NewChargeStateMachine(a.charges, a.logger)
	return nil
}

func (a *app) reconciliation() *services.ReconciliationService {
	return services.NewReconciliationService(a.charges, a.accounts, a.registry, a.machine, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("error during shutdown", "error", err)
		}
	}
}

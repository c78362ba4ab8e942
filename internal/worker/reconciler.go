package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

type StaleReconciler interface {
	ReconcileStale(ctx context.Context, statuses []domain.ChargeStatus, olderThan time.Duration, limit int) ([]*services.ReconciliationReport, error)
}

// reconciledStatuses are the in-flight states a lost notification can strand a charge in.
var reconciledStatuses = []domain.ChargeStatus{
	domain.StatusAuthSubmitted,
	domain.StatusCaptureSubmitted,
}

// Reconciler periodically compares stalled charges with the gateway.
type Reconciler struct {
	service    StaleReconciler
	interval   time.Duration
	stalledAge time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewReconciler(
	service StaleReconciler,
	interval time.Duration,
	stalledAge time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		service:    service,
		interval:   interval,
		stalledAge: stalledAge,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	runEvery(ctx, "reconciler", r.interval, r.logger, func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		return err
	})
}

// RunOnce reconciles one batch and logs every charge that still disagrees with its gateway.
func (r *Reconciler) RunOnce(ctx context.Context) ([]*services.ReconciliationReport, error) {
	reports, err := r.service.ReconcileStale(ctx, reconciledStatuses, r.stalledAge, r.batchSize)
	if err != nil {
		return nil, err
	}

	var resolved, drifted int
	for _, report := range reports {
		switch {
		case report.Resolved:
			resolved++
		case report.Result != services.ReconcileMatch:
			drifted++
			r.logger.WarnContext(ctx, "charge disagrees with gateway",
				"charge_id", report.ChargeID,
				"result", report.Result,
				"status", report.LocalStatus,
				"gateway_status", report.GatewayStatus,
				"provider_status", report.ProviderStatus,
			)
		}
	}

	if len(reports) > 0 {
		r.logger.InfoContext(ctx, "reconciliation run finished",
			"checked", len(reports),
			"resolved", resolved,
			"drifted", drifted,
		)
	}
	return reports, nil
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

type ReconcileResult string

const (
	ReconcileMatch          ReconcileResult = "MATCH"
	ReconcileMismatch       ReconcileResult = "MISMATCH"
	ReconcileGatewayUnknown ReconcileResult = "GATEWAY_UNKNOWN"
)

// ReconciliationReport compares one charge with the gateway's record of it.
type ReconciliationReport struct {
	ChargeID       string              `json:"chargeId"`
	Result         ReconcileResult     `json:"result"`
	LocalStatus    domain.ChargeStatus `json:"localStatus"`
	GatewayStatus  domain.ChargeStatus `json:"gatewayStatus,omitempty"`
	ProviderStatus string              `json:"providerStatus,omitempty"`
	LocalAmount    int64               `json:"localAmount"`
	GatewayAmount  *int64              `json:"gatewayAmount,omitempty"`
	Resolved       bool                `json:"resolved"`
	ResolvedStatus domain.ChargeStatus `json:"resolvedStatus,omitempty"`
	Error          string              `json:"error,omitempty"`
	CheckedAt      time.Time           `json:"checkedAt"`
}

type ReconciliationService struct {
	charges  application.ChargeRepository
	accounts application.AccountRepository
	adapters application.AdapterResolver
	machine  *ChargeStateMachine
	logger   *slog.Logger
}

func NewReconciliationService(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	machine *ChargeStateMachine,
	logger *slog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		charges:  charges,
		accounts: accounts,
		adapters: adapters,
		machine:  machine,
		logger:   logger,
	}
}

// Reconcile queries the gateway for one charge and reports how it compares.
func (s *ReconciliationService) Reconcile(ctx context.Context, externalID string) (*ReconciliationReport, error) {
	charge, err := loadCharge(ctx, s.charges, externalID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, charge)
}

// ReconcileStale reconciles charges sitting in any of statuses since before olderThan ago.
// A failure on one charge is logged and does not stop the batch.
func (s *ReconciliationService) ReconcileStale(
	ctx context.Context,
	statuses []domain.ChargeStatus,
	olderThan time.Duration,
	limit int,
) ([]*ReconciliationReport, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	charges, err := s.charges.FindByStatus(ctx, statuses, cutoff, limit)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	reports := make([]*ReconciliationReport, 0, len(charges))
	for _, charge := range charges {
		report, err := s.reconcile(ctx, charge)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to reconcile charge",
				"charge_id", charge.ExternalID,
				"error", err,
			)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, charge *domain.Charge) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		ChargeID:    charge.ExternalID,
		LocalStatus: charge.Status,
		LocalAmount: charge.TotalAmount(),
		CheckedAt:   time.Now().UTC(),
	}

	// An authorisation whose response was lost may have no id yet; the adapter then
	// looks the transaction up by charge id.
	if charge.TransactionID() == "" && charge.Status != domain.StatusAuthSubmitted {
		report.Result = ReconcileGatewayUnknown
		report.Error = "charge has no gateway transaction id"
		return report, nil
	}

	account, adapter, err := loadAccount(ctx, s.accounts, s.adapters, charge.AccountID)
	if err != nil {
		return nil, err
	}

	q := adapter.Query(ctx, domain.QueryRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		TransactionID: charge.TransactionID(),
	})
	report.ProviderStatus = q.ProviderStatus
	report.GatewayAmount = q.Amount

	if q.Err != nil {
		s.logger.ErrorContext(ctx, "reconciliation query failed",
			"charge_id", charge.ExternalID,
			"error", q.Err,
		)
		report.Result = ReconcileGatewayUnknown
		report.Error = q.Err.Error()
		return report, nil
	}
	if q.Status == "" {
		report.Result = ReconcileGatewayUnknown
		return report, nil
	}

	if charge.TransactionID() == "" && q.TransactionID != "" {
		if err := s.adoptTransactionID(ctx, charge, q.TransactionID); err != nil {
			return nil, err
		}
	}

	report.GatewayStatus = q.Status
	report.Result = compare(charge, q)
	if report.Result == ReconcileMatch {
		return report, nil
	}

	s.logger.WarnContext(ctx, "charge differs from gateway",
		"charge_id", charge.ExternalID,
		"status", charge.Status,
		"gateway_status", q.Status,
		"amount", charge.TotalAmount(),
		"gateway_amount", q.Amount,
	)

	if charge.Status == domain.StatusAuthSubmitted && resolvesStalledAuthorisation(q.Status) {
		if err := s.resolve(ctx, charge, q.Status, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// resolve applies the gateway's authorisation outcome to a charge stuck in AUTH_SUBMITTED.
func (s *ReconciliationService) resolve(ctx context.Context, charge *domain.Charge, target domain.ChargeStatus, report *ReconciliationReport) error {
	res, err := s.machine.Transition(ctx, charge, target, nil)
	if err != nil {
		return application.NewInternalError(err)
	}
	if res.Conflicted() {
		s.logger.InfoContext(ctx, "charge moved while reconciling, not resolving",
			"charge_id", charge.ExternalID,
		)
		return nil
	}

	report.Resolved = true
	report.ResolvedStatus = target
	s.logger.InfoContext(ctx, "resolved stalled authorisation",
		"charge_id", charge.ExternalID,
		"status", target,
	)
	return nil
}

// adoptTransactionID stores the id the gateway reported for a charge that never learned it.
func (s *ReconciliationService) adoptTransactionID(ctx context.Context, charge *domain.Charge, transactionID string) error {
	res, err := s.machine.Mutate(ctx, charge, func(c *domain.Charge) error {
		return c.AssignTransactionID(transactionID)
	})
	if err != nil {
		return application.NewInternalError(err)
	}
	if res.Conflicted() {
		latest, err := loadCharge(ctx, s.charges, charge.ExternalID)
		if err != nil {
			return err
		}
		*charge = *latest
		return nil
	}
	s.logger.InfoContext(ctx, "recovered gateway transaction id",
		"charge_id", charge.ExternalID,
		"transaction_id", transactionID,
	)
	return nil
}

func compare(charge *domain.Charge, q domain.QueryResult) ReconcileResult {
	if q.Status != charge.Status {
		return ReconcileMismatch
	}
	if q.Amount != nil && *q.Amount != charge.TotalAmount() {
		return ReconcileMismatch
	}
	return ReconcileMatch
}

func resolvesStalledAuthorisation(status domain.ChargeStatus) bool {
	switch status {
	case domain.StatusAuthSuccess, domain.StatusAuthRejected, domain.StatusAuthError, domain.StatusAuth3DSRequired:
		return true
	}
	return false
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

// expirable are the statuses a charge may be abandoned in.
var expirable = []domain.ChargeStatus{
	domain.StatusCreated,
	domain.StatusEnteringDetails,
	domain.StatusAuthReady,
	domain.StatusAuth3DSRequired,
	domain.StatusAuthSuccess,
}

type CancelService struct {
	charges  application.ChargeRepository
	accounts application.AccountRepository
	adapters application.AdapterResolver
	machine  *ChargeStateMachine
	logger   *slog.Logger
}

func NewCancelService(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	machine *ChargeStateMachine,
	logger *slog.Logger,
) *CancelService {
	return &CancelService{
		charges:  charges,
		accounts: accounts,
		adapters: adapters,
		machine:  machine,
		logger:   logger,
	}
}

// Cancel stops a charge that has not been submitted for capture. An existing
// authorisation is released at the gateway first.
func (s *CancelService) Cancel(ctx context.Context, cmd CancelCommand) (*domain.Charge, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	charge, err := loadCharge(ctx, s.charges, cmd.ChargeExternalID)
	if err != nil {
		return nil, err
	}

	target := domain.StatusSystemCancelled
	if cmd.ByUser {
		target = domain.StatusUserCancelled
	}
	if charge.Status == target {
		return charge, nil
	}

	if !charge.Status.IsCancellable() {
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "cancel"))
	}
	if charge.Status == domain.StatusAuthSuccess && !charge.DelayedCapture {
		// already queued for capture
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "cancel"))
	}

	if err := s.terminate(ctx, charge, target); err != nil {
		return nil, err
	}
	return charge, nil
}

// terminate releases any authorisation and moves charge to target.
func (s *CancelService) terminate(ctx context.Context, charge *domain.Charge, target domain.ChargeStatus) error {
	if charge.Status == domain.StatusAuthSuccess {
		if err := s.releaseAuthorisation(ctx, charge); err != nil {
			return err
		}
	}

	res, err := s.machine.Transition(ctx, charge, target, nil)
	if err != nil {
		return application.NewInternalError(err)
	}
	if res.Conflicted() {
		if charge.Status == domain.StatusAuthSuccess {
			s.logger.ErrorContext(ctx, "authorisation released at gateway but charge moved on",
				"charge_id", charge.ExternalID,
				"target", target,
			)
		}
		return application.NewRequestProcessingError()
	}
	return nil
}

func (s *CancelService) releaseAuthorisation(ctx context.Context, charge *domain.Charge) error {
	account, adapter, err := loadAccount(ctx, s.accounts, s.adapters, charge.AccountID)
	if err != nil {
		return err
	}

	outcome := adapter.Cancel(ctx, domain.CancelRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		TransactionID: charge.TransactionID(),
	})
	switch {
	case outcome.Kind == domain.OperationSubmitted:
		return nil
	case outcome.Err != nil && outcome.Err.IsRetryable():
		s.logger.ErrorContext(ctx, "cancel outcome unknown",
			"charge_id", charge.ExternalID,
			"error", outcome.Err,
		)
		return application.NewGatewayUnavailableError(outcome.Err)
	case outcome.Err != nil:
		s.logger.ErrorContext(ctx, "gateway protocol error during cancel",
			"charge_id", charge.ExternalID,
			"error", outcome.Err,
		)
		return application.NewGatewayProtocolError(outcome.Err)
	default:
		s.logger.WarnContext(ctx, "gateway refused to cancel authorisation",
			"charge_id", charge.ExternalID,
			"reason", outcome.Reason,
		)
		return application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "cancel"))
	}
}

// ExpireStale moves abandoned charges older than window to EXPIRED. Immediate-capture
// charges in AUTH_SUCCESS belong to the capture pipeline and are skipped.
func (s *CancelService) ExpireStale(ctx context.Context, window time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	charges, err := s.charges.FindByStatus(ctx, expirable, cutoff, limit)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	expired := 0
	for _, charge := range charges {
		if charge.Status == domain.StatusAuthSuccess && !charge.DelayedCapture {
			continue
		}
		if err := s.terminate(ctx, charge, domain.StatusExpired); err != nil {
			s.logger.WarnContext(ctx, "failed to expire charge",
				"charge_id", charge.ExternalID,
				"status", charge.Status,
				"error", err,
			)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "expired stale charges", "count", expired)
	}
	return expired, nil
}

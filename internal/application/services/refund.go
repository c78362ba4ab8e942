package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/google/uuid"
)

// RefundService returns captured money. Refunds live beside the charge and never change its status.
type RefundService struct {
	charges  application.ChargeRepository
	refunds  application.RefundRepository
	accounts application.AccountRepository
	adapters application.AdapterResolver
	logger   *slog.Logger
}

func NewRefundService(
	charges application.ChargeRepository,
	refunds application.RefundRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		charges:  charges,
		refunds:  refunds,
		accounts: accounts,
		adapters: adapters,
		logger:   logger,
	}
}

func (s *RefundService) Refund(ctx context.Context, cmd RefundCommand) (*domain.Refund, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	charge, err := loadCharge(ctx, s.charges, cmd.ChargeExternalID)
	if err != nil {
		return nil, err
	}
	if !charge.Status.IsRefundable() {
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "refund"))
	}

	account, adapter, err := loadAccount(ctx, s.accounts, s.adapters, charge.AccountID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	refund := &domain.Refund{
		ExternalID:       "rf_" + uuid.NewString(),
		ChargeExternalID: charge.ExternalID,
		Amount:           cmd.Amount,
		Reference:        cmd.Reference,
		Status:           domain.RefundCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.refunds.CreateWithinAvailable(ctx, refund, charge.TotalAmount()); err != nil {
		if errors.Is(err, domain.ErrRefundNotAvailable) {
			return nil, application.NewInvalidInputError(err)
		}
		return nil, application.NewInternalError(err)
	}

	outcome := adapter.Refund(ctx, domain.RefundRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		RefundID:      refund.ExternalID,
		TransactionID: charge.TransactionID(),
		Amount:        refund.Amount,
		Currency:      charge.Currency,
		Reference:     refund.Reference,
	})

	var failure error
	switch {
	case outcome.Kind == domain.OperationSubmitted:
		refund.Status = domain.RefundSubmitted
		if outcome.Reference != "" {
			ref := outcome.Reference
			refund.GatewayReference = &ref
		}
	case outcome.Err != nil && outcome.Err.IsRetryable():
		// the refund may have gone through, so it keeps holding its amount
		s.logger.ErrorContext(ctx, "refund outcome unknown",
			"charge_id", charge.ExternalID,
			"refund_id", refund.ExternalID,
			"error", outcome.Err,
		)
		return refund, application.NewGatewayUnavailableError(outcome.Err)
	default:
		refund.Status = domain.RefundError
		s.logger.ErrorContext(ctx, "refund failed at gateway",
			"charge_id", charge.ExternalID,
			"refund_id", refund.ExternalID,
			"reason", outcome.Reason,
			"error", gatewayErr(outcome.Err),
		)
		if outcome.Err != nil {
			failure = application.NewGatewayProtocolError(outcome.Err)
		}
	}

	refund.UpdatedAt = time.Now().UTC()
	if err := s.refunds.UpdateStatus(ctx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "refund recorded",
		"charge_id", charge.ExternalID,
		"refund_id", refund.ExternalID,
		"amount", refund.Amount,
		"refund_status", refund.Status,
	)
	return refund, failure
}

// Available returns how much of the charge can still be refunded.
func (s *RefundService) Available(ctx context.Context, chargeExternalID string) (int64, error) {
	charge, err := loadCharge(ctx, s.charges, chargeExternalID)
	if err != nil {
		return 0, err
	}
	refunds, err := s.refunds.FindByChargeExternalID(ctx, chargeExternalID)
	if err != nil {
		return 0, application.NewInternalError(err)
	}
	return domain.RefundableAmount(charge, refunds), nil
}

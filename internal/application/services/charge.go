package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/google/uuid"
)

type ChargeService struct {
	charges  application.ChargeRepository
	accounts application.AccountRepository
	logger   *slog.Logger
}

func NewChargeService(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	logger *slog.Logger,
) *ChargeService {
	return &ChargeService{
		charges:  charges,
		accounts: accounts,
		logger:   logger,
	}
}

// Create opens a new charge in CREATED for the given account.
func (s *ChargeService) Create(ctx context.Context, cmd CreateChargeCommand) (*domain.Charge, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	if _, err := s.accounts.FindByID(ctx, cmd.AccountID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	charge, err := domain.NewCharge(newExternalID(), cmd.AccountID, money, cmd.Description, cmd.Reference, cmd.DelayedCapture)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := s.charges.Create(ctx, charge); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "charge created",
		"charge_id", charge.ExternalID,
		"account_id", charge.AccountID,
		"amount", charge.Amount,
	)
	return charge, nil
}

func (s *ChargeService) Get(ctx context.Context, externalID string) (*domain.Charge, error) {
	return loadCharge(ctx, s.charges, externalID)
}

func (s *ChargeService) Events(ctx context.Context, externalID string) ([]domain.ChargeEvent, error) {
	charge, err := loadCharge(ctx, s.charges, externalID)
	if err != nil {
		return nil, err
	}
	events, err := s.charges.ListEvents(ctx, charge.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return events, nil
}

func newExternalID() string {
	return "ch_" + uuid.NewString()
}

package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/go-playground/validator"
)

var validate = validator.New()

func ComputeHash(v interface{}) string {
	data := fmt.Sprintf("%+v", v)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func validateCommand(cmd interface{}) error {
	if err := validate.Struct(cmd); err != nil {
		return application.NewInvalidInputError(err)
	}
	return nil
}

// loadCharge wraps repository misses into a not-found service error.
func loadCharge(ctx context.Context, charges application.ChargeRepository, externalID string) (*domain.Charge, error) {
	charge, err := charges.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrChargeNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return charge, nil
}

// loadAccount fetches the gateway account and the adapter that serves it.
func loadAccount(
	ctx context.Context,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	accountID int64,
) (*domain.GatewayAccount, application.GatewayAdapter, error) {
	account, err := accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil, application.NewNotFoundError(err)
		}
		return nil, nil, application.NewInternalError(err)
	}
	adapter, err := adapters.Adapter(account.Provider)
	if err != nil {
		return nil, nil, application.NewInternalError(err)
	}
	return account, adapter, nil
}

// gatewayErr converts a possibly nil *domain.GatewayError to an error without
// producing a non-nil interface around a nil pointer.
func gatewayErr(err *domain.GatewayError) error {
	if err == nil {
		return nil
	}
	return err
}

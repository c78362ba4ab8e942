package domain

import (
	"errors"
	"strings"
)

// Money is an amount in minor units of a currency.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount <= 0 {
		return Money{}, NewInvalidAmountError(amount)
	}
	if len(currency) != 3 {
		return Money{}, errors.New("currency must be a three letter ISO code")
	}
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}, nil
}

// Provider names a payment gateway integration.
type Provider string

const (
	ProviderWorldpay Provider = "worldpay"
	ProviderEPDQ     Provider = "epdq"
	ProviderStripe   Provider = "stripe"
	ProviderSandbox  Provider = "sandbox"
)

// AuthorisationMode describes how card details reach the gateway.
type AuthorisationMode string

const (
	AuthModeWeb      AuthorisationMode = "web"
	AuthModeMotoAPI  AuthorisationMode = "moto_api"
	AuthModeExternal AuthorisationMode = "external"
)

package services

import "github.com/DanielPopoola/chargecore/internal/domain"

type CreateChargeCommand struct {
	AccountID      int64  `validate:"required"`
	Amount         int64  `validate:"required,min=1"`
	Currency       string `validate:"required,len=3"`
	Description    string `validate:"required,max=255"`
	Reference      string `validate:"required,max=255"`
	DelayedCapture bool
}

type AuthoriseCommand struct {
	ChargeExternalID string `validate:"required"`
	CardNumber       string `validate:"required"`
	CVC              string `validate:"required,min=3,max=4"`
	ExpiryMonth      int    `validate:"required,min=1,max=12"`
	ExpiryYear       int    `validate:"required,min=2000"`
	CardholderName   string `validate:"required"`
	Address          *domain.Address
	PayerIP          string
	AcceptHeader     string
	UserAgent        string
	IdempotencyKey   string
}

// Card returns the card details carried by the command.
func (c AuthoriseCommand) Card() domain.CardDetails {
	return domain.CardDetails{
		CardNumber:     domain.NormaliseCardNumber(c.CardNumber),
		CVC:            c.CVC,
		ExpiryMonth:    c.ExpiryMonth,
		ExpiryYear:     c.ExpiryYear,
		CardholderName: c.CardholderName,
		Address:        c.Address,
	}
}

type ThreeDSCommand struct {
	ChargeExternalID string `validate:"required"`
	PaResponse       string
}

type CancelCommand struct {
	ChargeExternalID string `validate:"required"`
	ByUser           bool
}

type RefundCommand struct {
	ChargeExternalID string `validate:"required"`
	Amount           int64  `validate:"required,min=1"`
	Reference        string
}

// Package domain holds the charge lifecycle and the types shared between the
// orchestration services and the gateway integrations.
package domain

import "time"

// ThreeDSData is what a gateway hands back when the payer must complete a 3-D Secure challenge.
// It is persisted on the charge so the continuation can be submitted later.
type ThreeDSData struct {
	IssuerURL     string `json:"issuerUrl,omitempty"`
	PaRequest     string `json:"paRequest,omitempty"`
	HTMLOut       string `json:"htmlOut,omitempty"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	MachineCookie string `json:"machineCookie,omitempty"`
}

type Charge struct {
	ID                   int64
	ExternalID           string
	AccountID            int64
	Amount               int64
	Currency             string
	Description          string
	Reference            string
	Status               ChargeStatus
	GatewayTransactionID *string
	AuthMode             AuthorisationMode
	DelayedCapture       bool
	CorporateSurcharge   *int64
	CardBrand            string
	CardType             CardType
	ThreeDSData          *ThreeDSData
	CaptureRetryCount    int
	CaptureAttemptedAt   *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewCharge(
	externalID string,
	accountID int64,
	amount Money,
	description string,
	reference string,
	delayedCapture bool,
) (*Charge, error) {
	if externalID == "" {
		return nil, NewMissingRequiredFieldError("external id")
	}
	if accountID == 0 {
		return nil, NewMissingRequiredFieldError("account id")
	}
	if amount.Amount <= 0 {
		return nil, NewInvalidAmountError(amount.Amount)
	}
	if reference == "" {
		return nil, NewMissingRequiredFieldError("reference")
	}

	now := time.Now().UTC()
	return &Charge{
		ExternalID:     externalID,
		AccountID:      accountID,
		Amount:         amount.Amount,
		Currency:       amount.Currency,
		Description:    description,
		Reference:      reference,
		Status:         StatusCreated,
		AuthMode:       AuthModeWeb,
		DelayedCapture: delayedCapture,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// TotalAmount is the amount the payer is charged, corporate surcharge included.
func (c *Charge) TotalAmount() int64 {
	if c.CorporateSurcharge != nil {
		return c.Amount + *c.CorporateSurcharge
	}
	return c.Amount
}

// TransactionID returns the gateway transaction id or "" when none is assigned yet.
func (c *Charge) TransactionID() string {
	if c.GatewayTransactionID == nil {
		return ""
	}
	return *c.GatewayTransactionID
}

// AssignTransactionID sets the gateway transaction id once. Re-assigning the same id is a no-op.
func (c *Charge) AssignTransactionID(id string) error {
	if id == "" {
		return NewMissingRequiredFieldError("gateway transaction id")
	}
	if c.GatewayTransactionID != nil {
		if *c.GatewayTransactionID == id {
			return nil
		}
		return NewTransactionIDImmutableError(*c.GatewayTransactionID, id)
	}
	c.GatewayTransactionID = &id
	return nil
}

// ApplyCard records the card facts the authorisation needs after BIN lookup.
func (c *Charge) ApplyCard(info CardInformation, surcharge int64) {
	c.CardBrand = info.Brand
	c.CardType = info.Type
	if surcharge > 0 {
		c.CorporateSurcharge = &surcharge
	} else {
		c.CorporateSurcharge = nil
	}
}

// Clone returns a copy that can be mutated without affecting c.
func (c *Charge) Clone() *Charge {
	cp := *c
	if c.GatewayTransactionID != nil {
		id := *c.GatewayTransactionID
		cp.GatewayTransactionID = &id
	}
	if c.CorporateSurcharge != nil {
		s := *c.CorporateSurcharge
		cp.CorporateSurcharge = &s
	}
	if c.ThreeDSData != nil {
		d := *c.ThreeDSData
		cp.ThreeDSData = &d
	}
	if c.CaptureAttemptedAt != nil {
		t := *c.CaptureAttemptedAt
		cp.CaptureAttemptedAt = &t
	}
	return &cp
}

// ChargeEvent is an append-only record of a status change.
type ChargeEvent struct {
	ID               int64
	ChargeID         int64
	Status           ChargeStatus
	CreatedAt        time.Time
	GatewayEventTime *time.Time
}

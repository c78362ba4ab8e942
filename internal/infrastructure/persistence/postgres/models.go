package postgres

import (
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

// ChargeModel is the row shape of the charges table.
type ChargeModel struct {
	ID                   int64
	ExternalID           string
	AccountID            int64
	Amount               int64
	Currency             string
	Description          string
	Reference            string
	Status               string
	GatewayTransactionID *string
	AuthMode             string
	DelayedCapture       bool
	CorporateSurcharge   *int64
	CardBrand            string
	CardType             string
	ThreeDSData          *domain.ThreeDSData
	CaptureRetryCount    int
	CaptureAttemptedAt   *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ChargeEventModel struct {
	ID               int64
	ChargeID         int64
	Status           string
	CreatedAt        time.Time
	GatewayEventTime *time.Time
}

type RefundModel struct {
	ID               int64
	ExternalID       string
	ChargeExternalID string
	Amount           int64
	Reference        string
	Status           string
	GatewayReference *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AccountModel struct {
	ID                  int64
	Provider            string
	Credentials         map[string]string
	CorporateSurcharges domain.CorporateSurcharges
	RequiresThreeDS     bool
	Live                bool
	Description         string
}

package domain

import "time"

type RefundStatus string

const (
	RefundCreated   RefundStatus = "CREATED"
	RefundSubmitted RefundStatus = "SUBMITTED"
	RefundSuccess   RefundStatus = "SUCCESS"
	RefundError     RefundStatus = "ERROR"
)

// Counts reports whether the refund consumes refundable amount.
func (s RefundStatus) Counts() bool {
	return s != RefundError
}

type Refund struct {
	ID               int64
	ExternalID       string
	ChargeExternalID string
	Amount           int64
	Reference        string
	Status           RefundStatus
	GatewayReference *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RefundableAmount is amount plus surcharge minus everything already refunded or in flight.
func RefundableAmount(charge *Charge, refunds []*Refund) int64 {
	available := charge.TotalAmount()
	for _, r := range refunds {
		if r.Status.Counts() {
			available -= r.Amount
		}
	}
	return available
}

// IsRefundable reports whether money has been (or is being) taken for the charge.
func (s ChargeStatus) IsRefundable() bool {
	return s == StatusCaptured || s == StatusCaptureSubmitted
}

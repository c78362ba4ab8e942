package domain

import (
	"encoding/json"
	"time"
)

// IdempotencyRecord stores the first response produced for a client-supplied key.
type IdempotencyRecord struct {
	Key              string
	AccountID        int64
	ChargeExternalID string
	RequestHash      string
	Response         json.RawMessage
	CreatedAt        time.Time
}

// CaptureJob is the capture queue message. Delivery is at-least-once.
type CaptureJob struct {
	ChargeExternalID string    `json:"chargeExternalId"`
	OperationKey     string    `json:"operationKey,omitempty"`
	EnqueuedAt       time.Time `json:"-"`
}
